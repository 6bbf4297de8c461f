// Package google stores documents in a Google Sheets spreadsheet: one sheet
// per collection, a header row of field names, and an id column.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"budget/internal/docstore"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ docstore.DocumentStore = (*Client)(nil)
	_ docstore.Putter        = (*Client)(nil)
	_ docstore.Pinger        = (*Client)(nil)
)

// Options selects the spreadsheet and credentials. A service account is
// preferred; otherwise an OAuth client plus a saved token is required.
type Options struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex // guards sheetIDs and serializes writes
	sheetIDs map[string]int64
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, sheetIDs: make(map[string]int64)}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	saJSON, err := readInlineOrFile(opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if len(saJSON) > 0 {
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(saJSON))
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	clientJSON, err := readInlineOrFile(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or an OAuth client and token)")
	}
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokJSON, err := readInlineOrFile(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if len(tokJSON) == 0 {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	tok, err := ParseToken(tokJSON)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth token credentials")
	return gsheet.NewService(ctx, goption.WithTokenSource(cfg.TokenSource(ctx, tok)))
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// ParseToken decodes a token saved by the sheets-auth command.
func ParseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("parse oauth token: no access or refresh token")
	}
	return &tok, nil
}

// mapErr classifies a Sheets API failure into the docstore sentinels.
func mapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrNotFound, err)
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return mapErr("ping", err)
	}
	return nil
}

// sheetID resolves the numeric id of the sheet titled collection, adding the
// sheet when create is set. ok is false when it does not exist.
func (c *Client) sheetID(ctx context.Context, collection string, create bool) (id int64, ok bool, err error) {
	if id, ok := c.sheetIDs[collection]; ok {
		return id, true, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, false, mapErr("get spreadsheet", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == collection {
			c.sheetIDs[collection] = sh.Properties.SheetId
			return sh.Properties.SheetId, true, nil
		}
	}
	if !create {
		return 0, false, nil
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: collection}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, false, mapErr("add sheet", err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, false, fmt.Errorf("add sheet %s: empty reply", collection)
	}
	id = resp.Replies[0].AddSheet.Properties.SheetId
	c.sheetIDs[collection] = id
	slog.InfoContext(ctx, "Created collection sheet", "collection", collection, "sheet_id", id)
	return id, true, nil
}

func (c *Client) readAll(ctx context.Context, collection string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(collection)).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, mapErr("read "+collection, err)
	}
	return resp.Values, nil
}

// writeHeader grows the header row to cover rec's fields.
func (c *Client) writeHeader(ctx context.Context, collection string, values [][]any, rec docstore.Record) ([]string, error) {
	var current []string
	if len(values) > 0 {
		current = toStrings(values[0])
	}
	header, changed := extendHeader(current, rec)
	if !changed {
		return header, nil
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	rng := quoteSheet(collection) + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return nil, mapErr("write header", err)
	}
	return header, nil
}

// Add implements docstore.Adder
func (c *Client) Add(ctx context.Context, collection string, rec docstore.Record) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.sheetID(ctx, collection, true); err != nil {
		return "", err
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return "", err
	}
	header, err := c.writeHeader(ctx, collection, values, rec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := c.appendRow(ctx, collection, recordToRow(header, id, rec)); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) appendRow(ctx context.Context, collection string, row []any) error {
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quoteSheet(collection)+"!A1",
		&gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return mapErr("append "+collection, err)
	}
	return nil
}

// Put implements docstore.Putter
func (c *Client) Put(ctx context.Context, collection, id string, rec docstore.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.sheetID(ctx, collection, true); err != nil {
		return err
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return err
	}
	header, err := c.writeHeader(ctx, collection, values, rec)
	if err != nil {
		return err
	}
	row := recordToRow(header, id, rec)
	idx := findRow(values, id)
	if idx == -1 {
		return c.appendRow(ctx, collection, row)
	}
	rng := fmt.Sprintf("%s!A%d", quoteSheet(collection), idx+1)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return mapErr("update "+collection, err)
	}
	return nil
}

// List implements docstore.Lister. A collection without a sheet is empty.
func (c *Client) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	c.mu.Lock()
	_, ok, err := c.sheetID(ctx, collection, false)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return rowsToDocuments(values), nil
}

// Delete implements docstore.Deleter by removing the sheet row holding id.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sid, ok, err := c.sheetID(ctx, collection, false)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return err
	}
	idx := findRow(values, id)
	if idx == -1 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sid,
					Dimension:       "ROWS",
					StartIndex:      int64(idx),
					EndIndex:        int64(idx + 1),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return mapErr("delete "+id, err)
	}
	return nil
}
