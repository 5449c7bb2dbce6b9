package console

import (
	"context"
	"fmt"
	"time"

	"github.com/BTreeMap/TGArchive/internal/credentials"
	"github.com/BTreeMap/TGArchive/internal/models"
)

var rangeMenu = []string{
	"1. Last 1 Month",
	"2. Last 6 Months",
	"3. Last 1 Year",
	"4. Custom Range (Specify Start & End)",
	"5. All Messages",
}

// ChooseWindow runs the date range menu. Invalid custom dates fall back to
// the zero window, meaning all messages.
func (c *Console) ChooseWindow(ctx context.Context, now time.Time) (models.Window, error) {
	fmt.Fprintln(c.out)
	c.Info("Select Date Range:")
	for _, item := range rangeMenu {
		fmt.Fprintln(c.out, item)
	}

	choices := make([]string, len(models.RangeChoices))
	for i, rc := range models.RangeChoices {
		choices[i] = string(rc)
	}
	choice, err := c.Choose(ctx, "Choose an option", choices, string(models.RangeAll))
	if err != nil {
		return models.Window{}, err
	}
	if models.RangeChoice(choice) != models.RangeCustom {
		return models.PresetWindow(models.RangeChoice(choice), now), nil
	}

	c.Warn("Format example: 2024-01-01")
	start, err := c.Ask(ctx, "Enter Start Date (Earlier date)", "")
	if err != nil {
		return models.Window{}, err
	}
	end, err := c.Ask(ctx, "Enter End Date (Later date, usually today's date)", now.Format(models.DateLayout))
	if err != nil {
		return models.Window{}, err
	}
	w, swapped, err := models.ParseCustomWindow(start, end, now.Location())
	if err != nil {
		c.Error("Invalid date format. Using 'All Messages' instead.")
		return models.Window{}, nil
	}
	if swapped {
		c.Warn("Noticed dates were reversed. Swapped them for you.")
	}
	return w, nil
}

// CompleteCredentials asks for whatever d lacks. Application values that had
// to be typed mark the draft as Prompted.
func (c *Console) CompleteCredentials(ctx context.Context, d credentials.Draft) (credentials.Draft, error) {
	var err error
	if d.NeedsApp() {
		d.Prompted = true
		c.Warn("Notice: API credentials not found in environment variables.")
		c.Dim("Tip: We will save these for you automatically once you login.")
		if d.APIID == "" {
			if d.APIID, err = c.Ask(ctx, "Enter your API ID", ""); err != nil {
				return d, err
			}
		}
		if d.APIHash == "" {
			if d.APIHash, err = c.Ask(ctx, "Enter your API Hash", ""); err != nil {
				return d, err
			}
		}
	}
	if d.Phone == "" {
		if d.Phone, err = c.Ask(ctx, "Enter your Phone Number (with country code, e.g., +91...)", ""); err != nil {
			return d, err
		}
	}
	return d, nil
}

// AskTarget asks for the conversation to archive.
func (c *Console) AskTarget(ctx context.Context) (string, error) {
	return c.Ask(ctx, "Target User (Username, ID, or Phone)", "")
}
