package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
)

func TestValidate_Inputs(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid process input",
			input: graph.ProcessTextInput{Text: "Alice works at Acme."},
		},
		{
			name:    "blank text",
			input:   graph.ProcessTextInput{Text: "   "},
			wantErr: true,
			errMsg:  "text is required",
		},
		{
			name:    "max entities out of range",
			input:   graph.ProcessTextInput{Text: "x", MaxEntities: 1000},
			wantErr: true,
			errMsg:  "maxEntities must be at most 500",
		},
		{
			name:  "valid expand input",
			input: graph.ExpandEntityInput{GraphID: "g1", EntityID: "alice", Depth: 2},
		},
		{
			name:    "expand without entity",
			input:   graph.ExpandEntityInput{GraphID: "g1"},
			wantErr: true,
			errMsg:  "entityId is required",
		},
		{
			name:  "valid query input",
			input: graph.ExecuteQueryInput{GraphID: "g1", QueryType: graph.QueryStats},
		},
		{
			name:    "unknown query type",
			input:   graph.ExecuteQueryInput{GraphID: "g1", QueryType: "shortest"},
			wantErr: true,
			errMsg:  "queryType must be one of: neighbors, path, search, stats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
