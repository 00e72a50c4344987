package coverage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Report is a review-ready summary of one page's bridging state.
type Report struct {
	PageID      string       `json:"page_id"`
	PageURL     string       `json:"page_url"`
	Coverage    *CoverageRow `json:"coverage,omitempty"`
	RecentCount int          `json:"recent_count"`
	Markdown    string       `json:"markdown"`
}

// Report builds a markdown report for a page: the latest coverage tally,
// the recent write log, and the latest snapshot sanitized and converted to
// markdown. Pages without a snapshot still get the tally and write log.
func (k *Keeper) Report(ctx context.Context, pageID string) (*Report, error) {
	page, err := k.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("coverage: report: %w", err)
	}
	if page == nil {
		return nil, fmt.Errorf("coverage: report: unknown page %q", pageID)
	}

	cov, err := k.store.LatestCoverage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("coverage: report: %w", err)
	}
	writes, err := k.store.RecentWrites(ctx, pageID, k.config.Report.MaxWrites)
	if err != nil {
		return nil, fmt.Errorf("coverage: report: %w", err)
	}
	snap, err := k.store.LatestSnapshot(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("coverage: report: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Bridge report: %s\n\n", page.PageURL)
	fmt.Fprintf(&sb, "Attributes: `%s` → `%s`\n\n", page.PrimaryAttr, page.LegacyAttr)

	if cov != nil {
		sb.WriteString("## Coverage\n\n")
		sb.WriteString("| Tagged | Mirrored | Stale |\n|---|---|---|\n")
		fmt.Fprintf(&sb, "| %d | %d | %d |\n\n", cov.Tagged, cov.Mirrored, cov.Stale)
	}

	if len(writes) > 0 {
		sb.WriteString("## Recent writes\n\n")
		sb.WriteString("| XPath | Tag | Value | Old | Inserted |\n|---|---|---|---|---|\n")
		for _, w := range writes {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %v |\n",
				w.XPath, w.Tag, w.Value, w.OldValue, w.Inserted)
		}
		sb.WriteString("\n")
	}

	if snap != nil {
		sb.WriteString("## Latest snapshot\n\n")
		sb.WriteString(k.snapshotMarkdown(snap.HTML, page.PageURL))
		sb.WriteString("\n")
	}

	return &Report{
		PageID:      pageID,
		PageURL:     page.PageURL,
		Coverage:    cov,
		RecentCount: len(writes),
		Markdown:    sb.String(),
	}, nil
}

// snapshotMarkdown sanitizes snapshot HTML and converts it to markdown.
// If conversion fails or produces empty output, a placeholder is returned.
func (k *Keeper) snapshotMarkdown(html, pageURL string) string {
	clean := k.sanitizer.Sanitize(html)
	md, err := k.mdConverter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return "_(snapshot could not be rendered)_"
	}
	md = strings.TrimSpace(md)
	if max := k.config.Report.MaxMarkdownBytes; len(md) > max {
		md = md[:max] + "\n\n_(truncated)_"
	}
	return md
}
