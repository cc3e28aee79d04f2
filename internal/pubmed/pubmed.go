// Package pubmed is a minimal client for the NCBI E-utilities API, used as
// the document source for literature ingestion. It covers exactly the two
// calls the pipeline needs: esearch (query → PMIDs) and efetch
// (PMIDs → article details). NCBI requires a contact email on every request;
// an API key raises the rate limit but is optional.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultBaseURL is the NCBI E-utilities endpoint.
const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Document is one scientific article as produced by this source.
// The core consumes documents once during ingestion and does not retain
// them; retention is this source's (i.e. NCBI's) responsibility.
type Document struct {
	// PMID is the PubMed identifier.
	PMID string
	// Title is the article title.
	Title string
	// Abstract is the article abstract; may be empty.
	Abstract string
	// Journal is the journal title.
	Journal string
	// Year is the publication year; empty when unknown.
	Year string
	// Authors holds "Forename Lastname" entries in article order.
	Authors []string
}

// Config holds client settings.
type Config struct {
	// Email is the contact address NCBI requires on every request.
	Email string
	// APIKey is the optional NCBI API key.
	APIKey string
	// BaseURL overrides the E-utilities endpoint (used in tests).
	BaseURL string
	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the E-utilities API. Safe for concurrent use.
type Client struct {
	// cfg holds the resolved configuration.
	cfg *Config
	// httpClient is the shared HTTP client.
	httpClient *http.Client
}

// NewClient constructs a Client. An email address is required by NCBI policy.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Email == "" {
		return nil, fmt.Errorf("pubmed: a contact email is required — set PUBMED_EMAIL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// esearchResponse is the JSON body returned by esearch with retmode=json.
type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search returns up to maxResults PMIDs matching the query. Fewer results
// than requested, including none, is valid.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := c.baseParams()
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("retmode", "json")

	var result esearchResponse
	if err := c.getJSON(ctx, "/esearch.fcgi", params, &result); err != nil {
		return nil, fmt.Errorf("pubmed: search %q: %w", query, err)
	}
	return result.ESearchResult.IDList, nil
}

// efetch XML structures, trimmed to the fields the pipeline consumes.
type efetchResponse struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID    string         `xml:"PMID"`
	Article articleDetails `xml:"Article"`
}

type articleDetails struct {
	Title    flatText      `xml:"ArticleTitle"`
	Abstract abstractBlock `xml:"Abstract"`
	Journal  journalBlock  `xml:"Journal"`
	Authors  []authorEntry `xml:"AuthorList>Author"`
}

type abstractBlock struct {
	// Text holds the abstract sections; structured abstracts have several.
	Text []flatText `xml:"AbstractText"`
}

// flatText decodes an XML element into the concatenation of all character
// data inside it. PubMed titles and abstracts carry inline markup (<i>,
// <sub>, <sup>); plain string decoding would drop the text those elements
// wrap, losing species names and chemical formulas.
type flatText string

func (t *flatText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			sb.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	*t = flatText(sb.String())
	return nil
}

type journalBlock struct {
	Title string `xml:"Title"`
	Issue struct {
		PubDate struct {
			Year string `xml:"Year"`
		} `xml:"PubDate"`
	} `xml:"JournalIssue"`
}

type authorEntry struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

// FetchDetails fetches article details for the given PMIDs. Articles NCBI no
// longer returns are simply absent from the result.
func (c *Client) FetchDetails(ctx context.Context, pmids []string) ([]Document, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	params := c.baseParams()
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("rettype", "abstract")
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed: fetch details: %w", err)
	}

	var result efetchResponse
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("pubmed: parse efetch response: %w", err)
	}

	docs := make([]Document, 0, len(result.Articles))
	for _, a := range result.Articles {
		sections := make([]string, len(a.Citation.Article.Abstract.Text))
		for i, s := range a.Citation.Article.Abstract.Text {
			sections[i] = string(s)
		}
		doc := Document{
			PMID:     a.Citation.PMID,
			Title:    string(a.Citation.Article.Title),
			Abstract: strings.Join(sections, "\n"),
			Journal:  a.Citation.Article.Journal.Title,
			Year:     a.Citation.Article.Journal.Issue.PubDate.Year,
		}
		for _, au := range a.Citation.Article.Authors {
			if au.ForeName == "" && au.LastName == "" {
				continue
			}
			doc.Authors = append(doc.Authors, strings.TrimSpace(au.ForeName+" "+au.LastName))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping probes the E-utilities endpoint via einfo, the cheapest call NCBI
// offers. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	params := c.baseParams()
	params.Set("retmode", "json")
	if _, err := c.get(ctx, "/einfo.fcgi", params); err != nil {
		return fmt.Errorf("pubmed: ping: %w", err)
	}
	return nil
}

// baseParams returns the query parameters every E-utilities call carries.
func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("email", c.cfg.Email)
	params.Set("tool", "gskai")
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	return params
}

// get performs a GET against the given E-utilities path and returns the body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
