package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIURL      = "https://raportare.ceccar.ro/api/search"
	DefaultMembersType = "companies"
	DefaultTimeout     = 30 * time.Second
	DefaultPageDelay   = 250 * time.Millisecond

	NoDataMessage = "No data found for the selected region."
)

type FetcherInterface interface {
	FetchAll(ctx context.Context, region *int, onPage func(page, total int)) ([]models.Record, error)
	FetchPage(ctx context.Context, region *int, page int) (Page, error)
}

type Config struct {
	APIURL      string            `yaml:"api_url"`
	MembersType string            `yaml:"members_type"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     time.Duration     `yaml:"timeout"`
	PageDelay   time.Duration     `yaml:"page_delay"`
}

func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":       "application/ld+json",
		"Content-Type": "application/ld+json",
		"Origin":       "https://raportare.ceccar.ro",
		"Referer":      "https://raportare.ceccar.ro/search",
		"User-Agent":   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
	}
}

// Page is one decoded search response.
type Page struct {
	Items      []models.Record
	TotalPages int
	// TopLevel is set when items were found outside the pager object.
	TopLevel bool
}

type searchPayload struct {
	Page                  int         `json:"page"`
	MembersType           string      `json:"membersType"`
	MemberLastName        string      `json:"memberLastName"`
	MemberFirstName       string      `json:"memberFirstName"`
	MemberRegNumber       string      `json:"memberRegNumber"`
	MemberRegion          *int        `json:"memberRegion"`
	MemberCurrentYearVisa interface{} `json:"memberCurrentYearVisa"`
}

type pagination struct {
	TotalPages *int `json:"total_pages"`
}

type pager struct {
	Items      []models.Record `json:"items"`
	Pagination *pagination     `json:"pagination"`
}

type searchResponse struct {
	Pager      *pager          `json:"pager"`
	Items      []models.Record `json:"items"`
	Pagination *pagination     `json:"pagination"`
}

type Fetcher struct {
	client      *resty.Client
	apiURL      string
	membersType string
	pageDelay   time.Duration
	logger      logster.Logger
}

func NewFetcher(cfg Config, logger logster.Logger) *Fetcher {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.MembersType == "" {
		cfg.MembersType = DefaultMembersType
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	headers := DefaultHeaders()
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeaders(headers)

	return &Fetcher{
		client:      client,
		apiURL:      cfg.APIURL,
		membersType: cfg.MembersType,
		pageDelay:   cfg.PageDelay,
		logger:      logger.WithField("Layer", "Fetcher"),
	}
}

// FetchAll walks the search results from page 1 up to the total page count
// reported by the first response. Records keep page order, then in-page order.
// An empty first page yields a no-data error and nothing else is requested.
func (f *Fetcher) FetchAll(ctx context.Context, region *int, onPage func(page, total int)) ([]models.Record, error) {
	log := f.logger.WithField("region", regionLabel(region))

	var all []models.Record
	total := 1
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch cancelled before page %d: %w", page, err)
		}
		if page > 1 && f.pageDelay > 0 {
			select {
			case <-time.After(f.pageDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled before page %d: %w", page, ctx.Err())
			}
		}

		p, err := f.FetchPage(ctx, region, page)
		if err != nil {
			log.WithError(err).Errorf("page %d of %d failed", page, total)
			return nil, err
		}

		if page == 1 {
			total = p.TotalPages
			if p.TopLevel {
				log.Warnf("search response carries items at the top level instead of under pager")
			}
			if len(p.Items) == 0 {
				log.Infof("first page is empty, %d pages reported", total)
				return nil, models.NewNoDataError(NoDataMessage)
			}
			log.Infof("detected %d pages", total)
		}

		all = append(all, p.Items...)
		if onPage != nil {
			onPage(page, total)
		}
	}

	log.Infof("fetched %d records from %d pages", len(all), total)
	return all, nil
}

// FetchPage requests a single page of search results.
func (f *Fetcher) FetchPage(ctx context.Context, region *int, page int) (Page, error) {
	payload := searchPayload{
		Page:         page,
		MembersType:  f.membersType,
		MemberRegion: region,
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(f.apiURL)
	if err != nil {
		return Page{}, models.NewUpstreamError(fmt.Sprintf("search request for page %d failed", page), err)
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return Page{}, models.NewUpstreamError(
			fmt.Sprintf("search API returned status %d for page %d", code, page), nil)
	}

	return decodePage(resp.Body(), page)
}

func decodePage(body []byte, page int) (Page, error) {
	var sr searchResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&sr); err != nil {
		return Page{}, models.NewUpstreamError(fmt.Sprintf("malformed search response for page %d", page), err)
	}

	var p Page
	pag := sr.Pagination
	switch {
	case sr.Pager != nil && sr.Pager.Items != nil:
		p.Items = sr.Pager.Items
	case sr.Items != nil:
		p.Items = sr.Items
		p.TopLevel = true
	}
	if sr.Pager != nil && sr.Pager.Pagination != nil {
		pag = sr.Pager.Pagination
	}

	p.TotalPages = 1
	if pag != nil && pag.TotalPages != nil && *pag.TotalPages > 0 {
		p.TotalPages = *pag.TotalPages
	}
	return p, nil
}

func regionLabel(region *int) string {
	if region == nil {
		return "all"
	}
	return fmt.Sprintf("%d", *region)
}
