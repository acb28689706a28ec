package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Default tab names of the legacy spreadsheet.
const (
	DefaultUserSheet    = "user"
	DefaultMemberSheet  = "member"
	DefaultDepositSheet = "deposit"
)

// Writes are stored as typed and reads return raw values, so neither a
// "01/2024" period nor a "1,500" display format is reinterpreted.
const (
	valueInputOption     = "RAW"
	valueRenderOption    = "UNFORMATTED_VALUE"
	dateTimeRenderOption = "FORMATTED_STRING"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID string
	UserSheet     string
	MemberSheet   string
	DepositSheet  string

	// Service account credentials, inline JSON or a file path.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	userSheet     string
	memberSheet   string
	depositSheet  string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// New creates a Sheets-backed record store.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newWithService(svc, cfg), nil
}

func newWithService(svc *gsheet.Service, cfg Config) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		userSheet:     orDefault(cfg.UserSheet, DefaultUserSheet),
		memberSheet:   orDefault(cfg.MemberSheet, DefaultMemberSheet),
		depositSheet:  orDefault(cfg.DepositSheet, DefaultDepositSheet),
		sheetIDs:      make(map[string]int64),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when nothing is configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	switch {
	case credsJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		raw = []byte(credsJSON)
	case credsFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", credsFile)
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) ready() error {
	if c == nil || c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return nil
}

func (c *Client) readRange(ctx context.Context, sheet, cols string) ([][]interface{}, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rng := a1(sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption(valueRenderOption).
		DateTimeRenderOption(dateTimeRenderOption).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet, cols string, row []interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}
	rng := a1(sheet, cols)
	vr := &gsheet.ValueRange{Values: [][]interface{}{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

func (c *Client) FindUser(ctx context.Context, username, password string) (core.User, bool, error) {
	values, err := c.readRange(ctx, c.userSheet, "A:D")
	if err != nil {
		return core.User{}, false, err
	}
	for _, u := range parseUsers(values) {
		if u.Username == username && u.Password == password {
			return u, true, nil
		}
	}
	return core.User{}, false, nil
}

func (c *Client) ListMembers(ctx context.Context) ([]core.Member, error) {
	values, err := c.readRange(ctx, c.memberSheet, "A:H")
	if err != nil {
		return nil, err
	}
	return parseMembers(ctx, values), nil
}

func (c *Client) GetMember(ctx context.Context, id string) (core.Member, bool, error) {
	values, err := c.readRange(ctx, c.memberSheet, "A:H")
	if err != nil {
		return core.Member{}, false, err
	}
	i := findMemberRow(values, id)
	if i < 0 {
		return core.Member{}, false, nil
	}
	return memberFromValues(ctx, values[i]), true, nil
}

func (c *Client) AddMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	values, err := c.readRange(ctx, c.memberSheet, "A:A")
	if err != nil {
		return err
	}
	if findMemberRow(values, m.ID) >= 0 {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberExists)
	}
	return c.appendRow(ctx, c.memberSheet, "A:H", toRow(ports.MemberRow(m)))
}

func (c *Client) UpdateMember(ctx context.Context, m core.Member) error {
	values, err := c.readRange(ctx, c.memberSheet, "A:A")
	if err != nil {
		return err
	}
	i := findMemberRow(values, m.ID)
	if i < 0 {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberNotFound)
	}
	row := i + 1
	rng := a1(c.memberSheet, fmt.Sprintf("B%d:H%d", row, row))
	vr := &gsheet.ValueRange{Values: [][]interface{}{toRow(ports.MemberRow(m)[1:])}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) SumCarryForward(ctx context.Context) (core.Money, error) {
	members, err := c.ListMembers(ctx)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, m := range members {
		total = total.Add(m.Carry)
	}
	return total, nil
}

func (c *Client) ListDeposits(ctx context.Context) ([]core.Deposit, error) {
	values, err := c.readRange(ctx, c.depositSheet, "A:C")
	if err != nil {
		return nil, err
	}
	return parseDeposits(values), nil
}

func (c *Client) FindDeposit(ctx context.Context, memberID string, period core.PeriodKey) (core.Deposit, bool, error) {
	values, err := c.readRange(ctx, c.depositSheet, "A:C")
	if err != nil {
		return core.Deposit{}, false, err
	}
	i := findDepositRow(values, memberID, period)
	if i < 0 {
		return core.Deposit{}, false, nil
	}
	return depositFromValues(values[i]), true, nil
}

func (c *Client) AppendDeposit(ctx context.Context, d core.Deposit) error {
	return c.appendRow(ctx, c.depositSheet, "A:C", []interface{}{d.MemberID, d.Period.String(), d.Amount})
}

func (c *Client) DeleteDeposit(ctx context.Context, memberID string, period core.PeriodKey) error {
	values, err := c.readRange(ctx, c.depositSheet, "A:C")
	if err != nil {
		return err
	}
	i := findDepositRow(values, memberID, period)
	if i < 0 {
		return core.ErrDepositNotFound
	}
	sheetID, err := c.sheetID(ctx, c.depositSheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(i),
					EndIndex:   int64(i + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", i+1, c.depositSheet, err)
	}
	return nil
}

// Ping checks the spreadsheet can be opened with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	return nil
}

// sheetID resolves a tab title to its numeric id, needed for row deletion.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}

// a1 builds an A1 range, quoting the sheet title.
func a1(sheet, cols string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cols
}

func toRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, v := range cells {
		out[i] = v
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
