package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wolfeidau/orgtenant/internal/store"
)

// Server error codes, see https://www.mongodb.com/docs/manual/reference/error-codes/
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

func commandErrorCode(err error) (int32, bool) {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code, true
	}
	return 0, false
}

// mapMongoError maps driver errors to the store sentinel errors.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", store.ErrDuplicateKey, err)
	case mongo.IsNetworkError(err):
		return fmt.Errorf("mongodb network error: %w", err)
	case mongo.IsTimeout(err):
		return fmt.Errorf("mongodb timeout: %w", err)
	}

	return err
}

// mapRenameError classifies a failed renameCollection. Any server side refusal
// (existing target, sharded or capped collection, missing privilege) leaves
// copying as an option; transport failures do not.
func mapRenameError(err error) error {
	code, ok := commandErrorCode(err)
	if !ok {
		return mapMongoError(err)
	}

	if code == codeNamespaceNotFound {
		return fmt.Errorf("%w: %w", store.ErrContainerNotFound, err)
	}

	return fmt.Errorf("%w: %w", store.ErrRenameUnsupported, err)
}
