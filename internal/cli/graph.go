package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"brain2-graph/internal/domain/graph"
)

func (r *rootCommand) newProcessCommand() *cobra.Command {
	var (
		file        string
		name        string
		maxEntities int
	)

	cmd := &cobra.Command{
		Use:   "process [text]",
		Short: "Extract a knowledge graph from text",
		Long: `Extract a knowledge graph from text given as arguments or read from a file.
Use --file - to read the text from stdin.`,
		Example: `  graphctl process "Alice founded Acme. Acme builds robots."
  graphctl process --file notes.txt --name "Meeting notes"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, s *session) error {
				g, err := s.client.ProcessText(ctx, graph.ProcessTextInput{
					Text:        text,
					Name:        name,
					MaxEntities: maxEntities,
				})
				if err != nil {
					return err
				}
				return s.print(g, func(w io.Writer) { printGraph(w, g) })
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from a file (- for stdin)")
	cmd.Flags().StringVar(&name, "name", "", "graph name (defaults to the first sentence)")
	cmd.Flags().IntVar(&maxEntities, "max-entities", 0, "cap on extracted entities")
	return cmd
}

func readText(stdin io.Reader, args []string, file string) (string, error) {
	if len(args) > 0 && file != "" {
		return "", errors.New("pass text either as arguments or with --file, not both")
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	var (
		data []byte
		err  error
	)
	switch file {
	case "":
		return "", errors.New("text is required: pass it as an argument or with --file")
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}

func (r *rootCommand) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored graphs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, s *session) error {
				q := s.client.Graphs()
				defer q.Close()

				graphs, err := q.Get(ctx)
				if err != nil {
					return err
				}
				return s.print(graphs, func(w io.Writer) { printSummaries(w, graphs) })
			})
		},
	}
}

func (r *rootCommand) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <graph-id>",
		Short: "Show a graph with its entities and relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, s *session) error {
				g, err := s.client.GetGraph(ctx, args[0])
				if err != nil {
					return err
				}
				return s.print(g, func(w io.Writer) { printGraph(w, g) })
			})
		},
	}
}

func (r *rootCommand) newExpandCommand() *cobra.Command {
	var (
		depth       int
		maxEntities int
		merged      bool
	)

	cmd := &cobra.Command{
		Use:   "expand <graph-id> <entity-id>",
		Short: "Discover entities related to an entity",
		Long: `Discover entities related to an entity and add them to the graph.
With --merged the whole graph is printed after the expansion instead of just
the entity's neighbourhood.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphID, entityID := args[0], args[1]
			return r.run(cmd, func(ctx context.Context, s *session) error {
				if merged {
					// load the parent so the expansion merges into it
					if _, err := s.client.GetGraph(ctx, graphID); err != nil {
						return err
					}
				}

				sub, err := s.client.ExpandEntity(ctx, graph.ExpandEntityInput{
					GraphID:     graphID,
					EntityID:    entityID,
					Depth:       depth,
					MaxEntities: maxEntities,
				})
				if err != nil {
					return err
				}

				if merged {
					if g, ok := s.client.CachedGraph(graphID); ok {
						return s.print(g, func(w io.Writer) { printGraph(w, g) })
					}
				}
				return s.print(sub, func(w io.Writer) { printSubgraph(w, sub) })
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "levels to expand (1-3, default 1)")
	cmd.Flags().IntVar(&maxEntities, "max-entities", 0, "cap on new entities")
	cmd.Flags().BoolVar(&merged, "merged", false, "print the whole graph after expanding")
	return cmd
}

func (r *rootCommand) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <graph-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a graph",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphID := args[0]
			return r.run(cmd, func(ctx context.Context, s *session) error {
				if err := s.client.DeleteGraph(ctx, graphID); err != nil {
					return err
				}
				result := map[string]any{"graphId": graphID, "deleted": true}
				return s.print(result, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted graph %s\n", graphID)
				})
			})
		},
	}
}

func (r *rootCommand) newQueryCommand() *cobra.Command {
	var params map[string]string

	cmd := &cobra.Command{
		Use:   "query <graph-id> <neighbors|path|search|stats>",
		Short: "Run a structured query against a graph",
		Example: `  graphctl query $ID neighbors --param entityId=e1 --param depth=2
  graphctl query $ID path --param from=e1 --param to=e4
  graphctl query $ID search --param term=robot
  graphctl query $ID stats`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := graph.ExecuteQueryInput{
				GraphID:   args[0],
				QueryType: graph.QueryType(args[1]),
				Params:    graph.QueryParams(params),
			}
			return r.run(cmd, func(ctx context.Context, s *session) error {
				result, err := s.client.ExecuteQuery(ctx, in)
				if err != nil {
					return err
				}
				return s.print(result, func(w io.Writer) { printQueryResult(w, result) })
			})
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	return cmd
}
