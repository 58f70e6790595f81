package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/storage"
)

// resolveSources maps stored file IDs onto loader sources.
func resolveSources(store storage.Store, fileIDs []string) ([]loader.Source, error) {
	sources, err := storage.Sources(store, fileIDs)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, &APIError{
				Status:  http.StatusNotFound,
				Code:    "NOT_FOUND",
				Message: "file not found",
				Details: err.Error(),
			}
		}
		return nil, NewInternalError("failed to resolve files", err)
	}
	return sources, nil
}

// readStoredText reads stored files and joins their content in the given
// order. Files that could not be read are reported alongside the text.
func readStoredText(ctx context.Context, store storage.Store, reader *loader.Reader, fileIDs []string) (string, []*loader.FileError, error) {
	sources, err := resolveSources(store, fileIDs)
	if err != nil {
		return "", nil, err
	}

	batch, err := reader.Read(ctx, sources)
	if err != nil {
		return "", nil, FromError("failed to read files", err)
	}
	return batch.Text(), batch.Errors(), nil
}

func fileErrorReasons(errs []*loader.FileError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fe.Error())
	}
	return out
}
