package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/report"
	"BreakoutScanner/internal/scanner"
)

// ScanRequest are the query parameters of GET /api/scan.
type ScanRequest struct {
	Tickers string `query:"tickers" validate:"max=1024"`
	Detail  string `query:"detail" validate:"max=16"`
	Format  string `query:"format" default:"json" validate:"oneof=json text"`
	Width   int    `query:"width" default:"80" validate:"min=20,max=400"`
	Height  int    `query:"height" default:"12" validate:"min=3,max=100"`
}

// TickerRequest are the parameters of GET /api/tickers/:ticker.
type TickerRequest struct {
	Ticker string `param:"ticker" validate:"required,max=16"`
}

// Table is the display form of the ranked rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ScanResponse is the data payload of GET /api/scan.
type ScanResponse struct {
	Result *model.ScanResult   `json:"result"`
	Table  Table               `json:"table"`
	Detail *scanner.DetailView `json:"detail,omitempty"`
}

// RegisterRoutes mounts the API routes.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.health)
	api := e.Group("/api")
	api.GET("/scan", s.scan)
	api.GET("/tickers/:ticker", s.ticker)
}

func (s *Server) health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

func (s *Server) scan(c echo.Context) error {
	var req ScanRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	raw := req.Tickers
	if raw == "" {
		raw = s.config.DefaultTickers
	}

	ctx := c.Request().Context()
	res := s.scanner.Scan(ctx, scanner.ParseTickers(raw))

	var view *scanner.DetailView
	if ticker := res.SelectDetail(scanner.ParseDetail(req.Detail)); ticker != "" {
		view, _ = s.scanner.Detail(ctx, ticker)
	}

	if req.Format == "text" {
		out := report.FormatScanTable(res, s.config.Span)
		if view != nil {
			out += "\n" + report.FormatDetail(view, req.Width, req.Height)
		}
		return c.String(http.StatusOK, out)
	}
	return SuccessResponse(c, ScanResponse{
		Result: res,
		Table:  Table{Headers: report.HeadersFor(s.config.Span), Rows: report.TableRows(res.Rows)},
		Detail: view,
	})
}

func (s *Server) ticker(c echo.Context) error {
	var req TickerRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	ticker := scanner.ParseDetail(req.Ticker)
	view, ok := s.scanner.Detail(c.Request().Context(), ticker)
	if !ok {
		return AppErrorResponse(c, NotFoundErrorf("%s: %s", ticker, model.NoDataMessage))
	}
	return SuccessResponse(c, view)
}
