package validators

import (
	"io"
	"net/http"

	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
)

// ReadMultipartFile extracts the named upload field and returns its filename
// and content. maxBytes bounds how much the handler is willing to read; the
// engine behind it applies its own ceiling as well.
func ReadMultipartFile(r *http.Request, field string, maxBytes int64) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "missing upload field").
			WithDetails(map[string]any{"field": field})
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading upload")
	}
	if int64(len(content)) > maxBytes {
		return "", nil, pkgerrors.New(pkgerrors.CodeFileTooLarge, "uploaded file exceeds the size limit").
			WithDetails(map[string]any{"max_bytes": maxBytes})
	}

	return header.Filename, content, nil
}
