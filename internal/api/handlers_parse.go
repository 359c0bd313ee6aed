// handlers_parse.go - Date parser diagnostic handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soc-analytics/backend/internal/parser"
)

const maxParseValues = 1000

// ParseHandlerImpl implements the ParseHandler interface
type ParseHandlerImpl struct {
	parsers *parser.Registry
}

// NewParseHandler creates a new parse handler instance
func NewParseHandler(parsers *parser.Registry) ParseHandler {
	return &ParseHandlerImpl{parsers: parsers}
}

// HandleListParsers returns the registered parser names
func (h *ParseHandlerImpl) HandleListParsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"parsers": h.parsers.Names(),
	})
}

// HandleParseDates runs raw values through a vendor's (or a named) parser
// and reports what each one resolves to. GET takes ?vendor=&value=...,
// POST a JSON body.
func (h *ParseHandlerImpl) HandleParseDates(c echo.Context) error {
	var req parseDatesRequest
	if c.Request().Method == http.MethodGet {
		req.Parser = c.QueryParam("vendor")
		req.Values = c.QueryParams()["value"]
	} else if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	p, err := h.parsers.ForVendor(req.Parser)
	if err != nil {
		return NewBadRequestError("unknown parser", err)
	}

	results := make([]parseDateResult, len(req.Values))
	for i, raw := range req.Values {
		results[i] = parseDateResult{Raw: raw}
		if t := p.Parse(raw); !t.IsZero() {
			results[i].Parsed = t.Format(time.RFC3339Nano)
			results[i].OK = true
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"parser":  p.Name(),
		"results": results,
	})
}

// Request/Response types

type parseDatesRequest struct {
	// Parser is a vendor name or a registered parser name.
	Parser string   `json:"parser"`
	Values []string `json:"values"`
}

func (r *parseDatesRequest) validate() error {
	if r.Parser == "" {
		return NewValidationError("parser")
	}
	if len(r.Values) == 0 {
		return NewValidationError("values")
	}
	if len(r.Values) > maxParseValues {
		return NewBadRequestError("too many values", nil)
	}
	return nil
}

type parseDateResult struct {
	Raw    string `json:"raw"`
	Parsed string `json:"parsed,omitempty"`
	OK     bool   `json:"ok"`
}
