package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

// ReadFormulas returns cell contents as typed, so formula cells come back as "=..." text.
func (c *Client) ReadFormulas(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).
		ValueRenderOption("FORMULA").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	return nil
}

// BatchUpdate writes several ranges in one request.
func (c *Client) BatchUpdate(ctx context.Context, spreadsheetID string, data []*sheets.ValueRange) error {
	if len(data) == 0 {
		return nil
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}

	_, err := c.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to batch update: %w", err)
	}

	return nil
}

// EnsureRows grows the named sheet so that it has at least rows rows.
func (c *Client) EnsureRows(ctx context.Context, spreadsheetID, sheet string, rows int) error {
	spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties(sheetId,title,gridProperties.rowCount)").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties == nil || s.Properties.Title != sheet {
			continue
		}
		current := int64(0)
		if s.Properties.GridProperties != nil {
			current = s.Properties.GridProperties.RowCount
		}
		if current >= int64(rows) {
			return nil
		}
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AppendDimension: &sheets.AppendDimensionRequest{
					SheetId:   s.Properties.SheetId,
					Dimension: "ROWS",
					Length:    int64(rows) - current,
				},
			}},
		}
		if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to grow sheet: %w", err)
		}
		return nil
	}
	return fmt.Errorf("sheet %q not found in spreadsheet", sheet)
}
