package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultReadHeaderTimeout = 5 * time.Second

// Store is the read side used by the HTTP server.
type Store interface {
	List() ([]Summary, error)
	Load(id int) (Record, error)
}

type indexResponse struct {
	Data []Summary `json:"data"`
}

type reportResponse struct {
	Data []Detail `json:"data"`
}

type reportRequest struct {
	ID json.RawMessage `json:"id"`
}

// Handlers serves the training history to the front end.
type Handlers struct {
	Store Store
}

func NewHandlers(store Store) Handlers {
	return Handlers{Store: store}
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/get_index/", h.index)
	e.POST("/get_report/", h.report)
	e.GET("/schema/", h.schema)
}

func (h Handlers) index(c echo.Context) error {
	summaries, err := h.Store.List()
	if err != nil {
		c.Logger().Errorf("failed to list records: %v", err)
		return c.JSON(http.StatusInternalServerError, indexResponse{Data: []Summary{}})
	}
	return c.JSON(http.StatusOK, indexResponse{Data: summaries})
}

// report answers with an empty list for malformed or unknown ids.
func (h Handlers) report(c echo.Context) error {
	empty := reportResponse{Data: []Detail{}}

	var request reportRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&request); err != nil {
		return c.JSON(http.StatusOK, empty)
	}
	id, err := parseID(request.ID)
	if err != nil {
		return c.JSON(http.StatusOK, empty)
	}

	record, err := h.Store.Load(id)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			c.Logger().Errorf("failed to load record %d: %v", id, err)
		}
		return c.JSON(http.StatusOK, empty)
	}
	if record.Detail == nil {
		record.Detail = []Detail{}
	}
	return c.JSON(http.StatusOK, reportResponse{Data: record.Detail})
}

func (h Handlers) schema(c echo.Context) error {
	return c.JSON(http.StatusOK, RecordSchema())
}

// RecordSchema describes the stored record format.
func RecordSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(&Record{})
}

// parseID accepts the id as a JSON number or a numeric string.
func parseID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing id")
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	id, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", text, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("invalid id %d", id)
	}
	return id, nil
}

// NewEcho builds the echo instance with the report routes registered.
func NewEcho(store Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	NewHandlers(store).Register(e)
	return e
}

// Serve runs the report server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, store Store) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(NewEcho(store), "reports"),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("report server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("report server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down report server: %w", err)
	}
	return nil
}
