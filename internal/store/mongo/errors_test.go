package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wolfeidau/orgtenant/internal/store"
)

func TestMapRenameError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "target exists",
			err:  mongo.CommandError{Code: codeNamespaceExists, Name: "NamespaceExists"},
			want: store.ErrRenameUnsupported,
		},
		{
			name: "illegal operation",
			err:  mongo.CommandError{Code: 20, Name: "IllegalOperation"},
			want: store.ErrRenameUnsupported,
		},
		{
			name: "source missing",
			err:  mongo.CommandError{Code: codeNamespaceNotFound, Name: "NamespaceNotFound"},
			want: store.ErrContainerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapRenameError(fmt.Errorf("run command: %w", tt.err)), tt.want)
		})
	}

	t.Run("transport failure is not a refusal", func(t *testing.T) {
		err := mapRenameError(errors.New("connection reset by peer"))
		require.NotErrorIs(t, err, store.ErrRenameUnsupported)
		require.NotErrorIs(t, err, store.ErrContainerNotFound)
	})
}

func TestMapMongoError(t *testing.T) {
	require.NoError(t, mapMongoError(nil))
	require.ErrorIs(t, mapMongoError(mongo.ErrNoDocuments), store.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.ErrorIs(t, mapMongoError(dup), store.ErrDuplicateKey)
}
