// Package google stores rows in spreadsheets inside the user's own Google
// Drive, one spreadsheet per container kind, using the user's OAuth token.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"mmms/internal/cache"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/sheets"
)

const spreadsheetMime = "application/vnd.google-apps.spreadsheet"

// Config tunes the provider. Endpoints are only overridden in tests.
type Config struct {
	Timeout        time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	SheetsEndpoint string
	DriveEndpoint  string
	Logger         *log.Logger
}

// Provider builds per-user gateways. It is safe for concurrent use; the
// only shared state is the container id cache.
type Provider struct {
	cfg        Config
	base       *http.Client
	containers *cache.LRUCache[container]
	group      singleflight.Group
	logger     *log.Logger
}

type container struct {
	SpreadsheetID string
	SheetID       int64
	HasSheetID    bool
}

var (
	_ sheets.Provider = (*Provider)(nil)
	_ sheets.Gateway  = (*Gateway)(nil)
)

func NewProvider(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Provider{
		cfg:        cfg,
		base:       newHTTPClientWithPooling(),
		containers: cache.NewLRUCache[container](cfg.CacheSize, cfg.CacheTTL),
		logger:     logger.WithComponent(log.ComponentSheets),
	}
}

// Cache exposes the container cache for periodic cleanup.
func (p *Provider) Cache() cache.Cleaner { return p.containers }

// Gateway binds a gateway to the access token of user.
func (p *Provider) Gateway(ctx context.Context, user core.User) (sheets.Gateway, error) {
	if user.AccessToken == "" {
		return nil, &core.AuthError{Reason: "missing Google access token"}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: user.AccessToken, TokenType: "Bearer"})
	return p.GatewayFromTokenSource(ctx, user.Email, ts)
}

// GatewayFromTokenSource binds a gateway to ts. Background workers pass a
// refreshing token source here.
func (p *Provider) GatewayFromTokenSource(ctx context.Context, owner string, ts oauth2.TokenSource) (*Gateway, error) {
	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, p.base), ts)

	sheetOpts := []goption.ClientOption{goption.WithHTTPClient(httpClient)}
	if p.cfg.SheetsEndpoint != "" {
		sheetOpts = append(sheetOpts, goption.WithEndpoint(p.cfg.SheetsEndpoint))
	}
	sheetSvc, err := gsheet.NewService(ctx, sheetOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	driveOpts := []goption.ClientOption{goption.WithHTTPClient(httpClient)}
	if p.cfg.DriveEndpoint != "" {
		driveOpts = append(driveOpts, goption.WithEndpoint(p.cfg.DriveEndpoint))
	}
	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Gateway{p: p, owner: owner, sheets: sheetSvc, drive: driveSvc}, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Google APIs with
// connection pooling and transport timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Gateway talks to the spreadsheets of one user.
type Gateway struct {
	p      *Provider
	owner  string
	sheets *gsheet.Service
	drive  *drive.Service
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.p.cfg.Timeout)
}

func (g *Gateway) cacheKey(kind sheets.Kind) string { return g.owner + "|" + string(kind) }

// EnsureContainer finds the spreadsheet of kind in Drive or creates it.
// Creation and the header write are two calls; a spreadsheet left without
// headers is repaired the next time it is looked up.
func (g *Gateway) EnsureContainer(ctx context.Context, kind sheets.Kind) (string, error) {
	c, _, err := g.container(ctx, kind)
	if err != nil {
		return "", err
	}
	return c.SpreadsheetID, nil
}

func (g *Gateway) container(ctx context.Context, kind sheets.Kind) (container, sheets.Layout, error) {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return container{}, layout, core.Persistence("ensure", string(kind), err)
	}
	key := g.cacheKey(kind)
	if c, ok := g.p.containers.Get(key); ok {
		return c, layout, nil
	}
	v, err, _ := g.p.group.Do(key, func() (interface{}, error) {
		if c, ok := g.p.containers.Get(key); ok {
			return c, nil
		}
		c, err := g.findOrCreate(ctx, layout)
		if err != nil {
			return container{}, err
		}
		g.p.containers.Set(key, c)
		return c, nil
	})
	if err != nil {
		return container{}, layout, core.Persistence("ensure", string(kind), err)
	}
	return v.(container), layout, nil
}

func (g *Gateway) findOrCreate(ctx context.Context, layout sheets.Layout) (container, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(layout.Spreadsheet), spreadsheetMime)
	found, err := g.drive.Files.List().Q(q).Spaces("drive").Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return container{}, fmt.Errorf("search drive for %q: %w", layout.Spreadsheet, err)
	}
	if len(found.Files) > 0 {
		c := container{SpreadsheetID: found.Files[0].Id}
		return c, g.ensureHeaders(ctx, c, layout)
	}

	created, err := g.sheets.Spreadsheets.Create(&gsheet.Spreadsheet{
		Properties: &gsheet.SpreadsheetProperties{Title: layout.Spreadsheet},
		Sheets:     []*gsheet.Sheet{{Properties: &gsheet.SheetProperties{Title: layout.Sheet}}},
	}).Context(ctx).Do()
	if err != nil {
		return container{}, fmt.Errorf("create spreadsheet %q: %w", layout.Spreadsheet, err)
	}
	c := container{SpreadsheetID: created.SpreadsheetId}
	for _, sh := range created.Sheets {
		if sh.Properties != nil && sh.Properties.Title == layout.Sheet {
			c.SheetID, c.HasSheetID = sh.Properties.SheetId, true
		}
	}
	if err := g.writeHeaders(ctx, c, layout); err != nil {
		return container{}, err
	}
	g.p.logger.InfoContext(ctx, "Created spreadsheet",
		log.FieldOperation, log.OpCreate,
		log.FieldKind, string(layout.Kind),
		log.FieldSpreadsheetID, c.SpreadsheetID)
	return c, nil
}

func (g *Gateway) ensureHeaders(ctx context.Context, c container, layout sheets.Layout) error {
	resp, err := g.sheets.Spreadsheets.Values.Get(c.SpreadsheetID, headerRange(layout.Sheet, layout.Width())).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read headers of %q: %w", layout.Spreadsheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	g.p.logger.WarnContext(ctx, "Spreadsheet without header row, rewriting headers",
		log.FieldKind, string(layout.Kind),
		log.FieldSpreadsheetID, c.SpreadsheetID)
	return g.writeHeaders(ctx, c, layout)
}

func (g *Gateway) writeHeaders(ctx context.Context, c container, layout sheets.Layout) error {
	vr := &gsheet.ValueRange{Values: [][]interface{}{toCells(layout.Headers)}}
	_, err := g.sheets.Spreadsheets.Values.Update(c.SpreadsheetID, headerRange(layout.Sheet, layout.Width()), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write headers of %q: %w", layout.Spreadsheet, err)
	}
	return nil
}

func (g *Gateway) List(ctx context.Context, kind sheets.Kind) ([]sheets.Row, error) {
	c, layout, err := g.container(ctx, kind)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.sheets.Spreadsheets.Values.Get(c.SpreadsheetID, dataRange(layout.Sheet, layout.Width())).Context(ctx).Do()
	if err != nil {
		return nil, core.Persistence("list", string(kind), g.classify(kind, err))
	}
	rows := make([]sheets.Row, 0, len(resp.Values))
	for _, v := range resp.Values {
		rows = append(rows, layout.Pad(toStrings(v)))
	}
	return rows, nil
}

func (g *Gateway) Append(ctx context.Context, kind sheets.Kind, row sheets.Row) error {
	c, layout, err := g.container(ctx, kind)
	if err != nil {
		return err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	vr := &gsheet.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err = g.sheets.Spreadsheets.Values.Append(c.SpreadsheetID, quoteSheet(layout.Sheet)+"!A1", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return core.Persistence("append", string(kind), g.classify(kind, err))
	}
	return nil
}

func (g *Gateway) UpdateCell(ctx context.Context, kind sheets.Kind, rowIndex, column int, values ...string) error {
	c, layout, err := g.container(ctx, kind)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if column < 1 || column+len(values)-1 > layout.Width() {
		return core.Persistence("update", string(kind), fmt.Errorf("columns %d..%d outside layout", column, column+len(values)-1))
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.checkRow(ctx, c, layout, rowIndex); err != nil {
		return core.Persistence("update", string(kind), err)
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err = g.sheets.Spreadsheets.Values.Update(c.SpreadsheetID, cellRange(layout.Sheet, rowIndex, column, len(values)), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return core.Persistence("update", string(kind), g.classify(kind, err))
	}
	return nil
}

func (g *Gateway) DeleteRow(ctx context.Context, kind sheets.Kind, rowIndex int) error {
	c, layout, err := g.container(ctx, kind)
	if err != nil {
		return err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.checkRow(ctx, c, layout, rowIndex); err != nil {
		return core.Persistence("delete", string(kind), err)
	}
	if !c.HasSheetID {
		if c, err = g.resolveSheetID(ctx, kind, c, layout); err != nil {
			return core.Persistence("delete", string(kind), err)
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    c.SheetID,
			Dimension:  "ROWS",
			StartIndex: int64(rowIndex + 1),
			EndIndex:   int64(rowIndex + 2),
		}},
	}}}
	if _, err := g.sheets.Spreadsheets.BatchUpdate(c.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return core.Persistence("delete", string(kind), g.classify(kind, err))
	}
	return nil
}

// checkRow verifies rowIndex addresses an existing data row. Column A is
// filled on every layout.
func (g *Gateway) checkRow(ctx context.Context, c container, layout sheets.Layout, rowIndex int) error {
	if rowIndex < 0 {
		return sheets.ErrRowOutOfRange
	}
	resp, err := g.sheets.Spreadsheets.Values.Get(c.SpreadsheetID, quoteSheet(layout.Sheet)+"!A2:A").Context(ctx).Do()
	if err != nil {
		return g.classify(layout.Kind, err)
	}
	if rowIndex >= len(resp.Values) {
		return sheets.ErrRowOutOfRange
	}
	return nil
}

// resolveSheetID looks up the numeric id of the layout's sheet; row
// deletion addresses sheets by id, not title.
func (g *Gateway) resolveSheetID(ctx context.Context, kind sheets.Kind, c container, layout sheets.Layout) (container, error) {
	ss, err := g.sheets.Spreadsheets.Get(c.SpreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return c, g.classify(kind, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == layout.Sheet {
			c.SheetID, c.HasSheetID = sh.Properties.SheetId, true
			g.p.containers.Set(g.cacheKey(kind), c)
			return c, nil
		}
	}
	return c, fmt.Errorf("sheet %q not found in %q", layout.Sheet, layout.Spreadsheet)
}

// classify drops the cached container when the spreadsheet is gone so the
// next call provisions it again.
func (g *Gateway) classify(kind sheets.Kind, err error) error {
	if isNotFound(err) {
		g.p.containers.Delete(g.cacheKey(kind))
	}
	return err
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
