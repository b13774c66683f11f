package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/table"
)

var (
	// ErrSpreadsheetNotFound means the configured spreadsheet does not exist
	// or is not shared with the credentials.
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	// ErrSheetNotFound means the spreadsheet has no sheet with the configured name.
	ErrSheetNotFound = errors.New("sheet not found")
)

var scopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveMetadataReadonlyScope,
}

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Sheets uploads to a Google Sheets worksheet.
type Sheets struct {
	sheets          *sheets.Service
	drive           *drive.Service
	spreadsheetID   string
	spreadsheetName string
	sheetName       string
	layout          Layout
	logger          *log.Logger
}

// NewSheets creates a Google Sheets uploader. Without client options the
// service account key at cfg.Credentials is used.
func NewSheets(ctx context.Context, cfg config.UploadConfig, logger *log.Logger, opts ...option.ClientOption) (*Sheets, error) {
	layout, err := ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	if cfg.SheetName == "" {
		return nil, fmt.Errorf("sheet name is required")
	}
	if cfg.SpreadsheetID == "" && cfg.SpreadsheetName == "" {
		return nil, fmt.Errorf("spreadsheet name or id is required")
	}

	if len(opts) == 0 {
		creds, err := credentialsOption(ctx, cfg.Credentials)
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{creds}
	}

	ss, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}

	return &Sheets{
		sheets:          ss,
		drive:           ds,
		spreadsheetID:   cfg.SpreadsheetID,
		spreadsheetName: cfg.SpreadsheetName,
		sheetName:       cfg.SheetName,
		layout:          layout,
		logger:          orDiscard(logger),
	}, nil
}

func credentialsOption(ctx context.Context, path string) (option.ClientOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return option.WithHTTPClient(conf.Client(ctx)), nil
}

// Upload resizes the sheet to the table and writes it from A1.
func (s *Sheets) Upload(ctx context.Context, t *table.Table) error {
	id, err := s.resolveSpreadsheet(ctx)
	if err != nil {
		return err
	}
	sheetID, err := s.findSheet(ctx, id)
	if err != nil {
		return err
	}

	rows := BuildRows(t, s.layout)
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, cells(Header))
	for _, r := range rows {
		values = append(values, sheetRow(r))
	}

	resize := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(len(values)),
						ColumnCount: int64(len(Header)),
					},
					ForceSendFields: []string{"SheetId"},
				},
				Fields: "gridProperties.rowCount,gridProperties.columnCount",
			},
		}},
	}
	if _, err := s.sheets.Spreadsheets.BatchUpdate(id, resize).Context(ctx).Do(); err != nil {
		return fmt.Errorf("resizing sheet %s: %w", s.sheetName, err)
	}

	rng := sheetRange(s.sheetName, "A1")
	_, err = s.sheets.Spreadsheets.Values.Update(id, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing %s: %w", rng, err)
	}

	s.logger.Info("uploaded", "spreadsheet", id, "sheet", s.sheetName, "rows", len(rows))
	return nil
}

// resolveSpreadsheet returns the configured ID, or looks the spreadsheet up
// by name in Drive.
func (s *Sheets) resolveSpreadsheet(ctx context.Context) (string, error) {
	if s.spreadsheetID != "" {
		return s.spreadsheetID, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(s.spreadsheetName), spreadsheetMimeType)
	res, err := s.drive.Files.List().Q(q).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("searching for spreadsheet %q: %w", s.spreadsheetName, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, s.spreadsheetName)
	}
	if len(res.Files) > 1 {
		s.logger.Warn("several spreadsheets share the name, using the first", "name", s.spreadsheetName, "id", res.Files[0].Id)
	}
	return res.Files[0].Id, nil
}

func (s *Sheets) findSheet(ctx context.Context, id string) (int64, error) {
	ss, err := s.sheets.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return 0, fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, id)
		}
		return 0, fmt.Errorf("reading spreadsheet %s: %w", id, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSheetNotFound, s.sheetName)
}

// sheetRow renders a row for USER_ENTERED input. Descriptions are forced to
// text so one starting with "=", "+", "-" or "@" is not evaluated.
func sheetRow(r Row) []interface{} {
	v := r.Values()
	return []interface{}{v[0], v[1], textCell(v[2])}
}

func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@'", rune(s[0])) {
		return "'" + s
	}
	return s
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// sheetRange quotes a sheet title for A1 notation.
func sheetRange(sheet, cell string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cell
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
