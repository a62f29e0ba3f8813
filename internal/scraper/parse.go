package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mozillazg/go-unidecode"

	"github.com/54b3r/pressqa-go/internal/article"
)

// ParseArticle extracts a record from an article page. The content area is
// the div.richtext inside the first section of <main>; only its direct p,
// ul, h2, and table-wrapping div children become blocks.
func ParseArticle(doc *goquery.Document, link string) (*article.Record, error) {
	body := doc.Find("main").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("scraper: %s: no <main> element", link)
	}

	rawDate := collapse(body.Find("time").First().Text())
	if rawDate == "" {
		return nil, fmt.Errorf("scraper: %s: no <time> element", link)
	}
	date, err := article.ParseDate(unidecode.Unidecode(rawDate))
	if err != nil {
		return nil, fmt.Errorf("scraper: %s: %w", link, err)
	}

	rec := &article.Record{
		Title:       unidecode.Unidecode(collapse(doc.Find("title").First().Text())),
		PublishDate: date,
		Link:        link,
		Blocks:      contentBlocks(body.Find("section").First().Find("div.richtext").First()),
	}
	if addr := body.Find("address").First(); addr.Length() > 0 {
		author := unidecode.Unidecode(collapse(addr.Text()))
		rec.Author = &author
	}
	return rec, nil
}

// contentBlocks maps the direct children of the content area to blocks.
func contentBlocks(area *goquery.Selection) []article.Block {
	var blocks []article.Block
	area.Children().Each(func(_ int, el *goquery.Selection) {
		name := goquery.NodeName(el)
		if el.HasClass("footnote") {
			blocks = append(blocks, article.Block{Kind: article.KindBoilerplate, Text: collapse(el.Text())})
			return
		}
		switch name {
		case "h2":
			blocks = append(blocks, article.Block{Kind: article.KindHeading, Text: collapse(el.Text())})
		case "p":
			if text := collapse(el.Text()); text != "" {
				blocks = append(blocks, article.Block{Kind: article.KindParagraph, Text: text})
			}
		case "ul":
			if text := listText(el); text != "" {
				blocks = append(blocks, article.Block{Kind: article.KindList, Text: text})
			}
		case "div":
			if table := el.Find("table").First(); table.Length() > 0 {
				if rows := tableRows(table); len(rows) > 0 {
					blocks = append(blocks, article.Block{Kind: article.KindTable, Rows: rows})
				}
			}
		}
	})
	return blocks
}

// listText joins the list items, one per line.
func listText(ul *goquery.Selection) string {
	var items []string
	ul.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := collapse(li.Text()); t != "" {
			items = append(items, t)
		}
	})
	if len(items) == 0 {
		return collapse(ul.Text())
	}
	return strings.Join(items, "\n")
}

// tableRows returns the th/td texts of each row, skipping rows without cells.
func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, collapse(c.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
