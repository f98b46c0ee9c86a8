// Package read serves read operations, their argument shapes and the registered
// format enumerations over HTTP.
package read

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/engine"
	"github.com/Ramsey-B/thistle/pkg/enum"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/reqctx"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
)

var validate = validator.New()

// Operations is the read surface of an engine.Builder after the build phase.
type Operations interface {
	Operation(entity, operation string) (*engine.ReadOperation, bool)
	Operations() []*engine.ReadOperation
	Enumerations() []enum.Enumeration
}

type Handler struct {
	operations Operations
	logger     ectologger.Logger
}

func NewHandler(operations Operations, logger ectologger.Logger) *Handler {
	return &Handler{
		operations: operations,
		logger:     logger,
	}
}

// Register registers read routes on the /api/v1 group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/read", h.List)
	g.POST("/read/:entity/:operation", h.Read)
	g.GET("/read/:entity/:operation/arguments", h.Arguments)
	g.GET("/enums", h.Enums)
	g.GET("/enums/:name", h.Enum)
}

type OperationSummary struct {
	Entity    string   `json:"entity"`
	Operation string   `json:"operation"`
	Plugins   []string `json:"plugins"`
}

// List returns every built read operation.
func (h *Handler) List(c echo.Context) error {
	items := ectolinq.Map(h.operations.Operations(), func(op *engine.ReadOperation) OperationSummary {
		return OperationSummary{Entity: op.Entity, Operation: op.Name, Plugins: op.Plugins()}
	})
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) operation(c echo.Context) (*engine.ReadOperation, error) {
	entity, name := c.Param("entity"), c.Param("operation")
	c.SetRequest(c.Request().WithContext(reqctx.SetOperation(c.Request().Context(), entity, name)))

	op, ok := h.operations.Operation(entity, name)
	if !ok {
		return nil, caperrors.Newf(caperrors.CodeUnknownEntity, "read operation '%s' is not defined", name).AddEntity(entity)
	}
	return op, nil
}

// Read executes a read operation. The body carries filter, sort, limit, offset
// and format; the whole body is also handed to custom filter resolvers.
func (h *Handler) Read(c echo.Context) error {
	op, err := h.operation(c)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(c.Request().Context(), "read_handler.Read",
		attribute.String("entity", op.Entity),
		attribute.String("operation", op.Name),
	)
	defer span.End()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	var req engine.Request
	args := capability.Arguments{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decode(body, &req); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if err := decode(body, &args); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	for _, f := range req.Format {
		if err := validate.Struct(f); err != nil {
			return err
		}
	}
	req.Args = args

	result, err := op.Execute(ctx, req)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(reqctx.Fields(ctx)).WithField("returned", len(result.Nodes)).Debug("served read")
	return c.JSON(http.StatusOK, result)
}

// decode keeps numbers as json.Number so integer filter values stay exact.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

// Arguments returns the argument shape of a read operation.
func (h *Handler) Arguments(c echo.Context) error {
	op, err := h.operation(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, op.Arguments())
}

// Enums lists the registered enumerations in registration order.
func (h *Handler) Enums(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.operations.Enumerations()})
}

func (h *Handler) Enum(c echo.Context) error {
	name := c.Param("name")
	found := ectolinq.Find(h.operations.Enumerations(), func(e enum.Enumeration) bool {
		return e.Name == name
	})
	if found.Name != name {
		return httperror.NewHTTPError(http.StatusNotFound, "enumeration not found")
	}
	return c.JSON(http.StatusOK, found)
}
