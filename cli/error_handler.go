package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/basin/errors"
)

// ErrorHandler prints user-facing messages for basin errors.
type ErrorHandler struct {
	Verbose bool
	Writer  io.Writer
}

// NewErrorHandler creates an error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Writer:  os.Stderr,
	}
}

// Handle prints a message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	w := h.Writer
	p := paletteFor(w)
	prefix := p.errorf.Render("✗")

	basinErr, _ := errors.AsBasinError(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(w, "%s Configuration not found. Create a basin.yml in your project root.\n", prefix)

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(w, "%s %v\n", prefix, err)
		if basinErr != nil && basinErr.Details["path"] != nil {
			fmt.Fprintf(w, "%s\n", p.muted.Render(fmt.Sprintf("Check %v, or run 'basin schema' for the format.", basinErr.Details["path"])))
		}

	case errors.ErrCodeIO:
		fmt.Fprintf(w, "%s %v\n", prefix, err)

	case errors.ErrCodeHandlerFailed:
		fmt.Fprintf(w, "%s A pipeline failed: %v\n", prefix, err)

	default:
		fmt.Fprintf(w, "%s Error: %v\n", prefix, err)
	}

	if h.Verbose && basinErr != nil {
		fmt.Fprintf(w, "\nError details:\n%s\n", basinErr.ToJSON())
	}
	return err
}
