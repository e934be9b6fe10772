package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/matching"
	"rfpquote/internal/pipeline"
	"rfpquote/internal/pricing"
	"rfpquote/internal/rfp"
)

func (s *Server) reference(w http.ResponseWriter) (*catalog.Reference, bool) {
	ref := s.sync.Holder().Current()
	if ref == nil {
		writeError(w, http.StatusServiceUnavailable, "reference data not loaded")
		return nil, false
	}
	return ref, true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "products": 0, "tests": 0}
	if ref := s.sync.Holder().Current(); ref != nil {
		resp["products"] = ref.Index().Len()
		resp["tests"] = ref.Tests().Len()
	} else {
		resp["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	writeJSON(w, http.StatusOK, ref.Index().Page(page, size, q.Get("category")))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	p, found := ref.Product(pathParam(r, "sku"))
	if !found {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProduct(w http.ResponseWriter, r *http.Request) {
	var p internal.CatalogProduct
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	p.SKU = pathParam(r, "sku")
	if _, err := s.sync.UpsertProduct(p); err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	sku := pathParam(r, "sku")
	found, err := s.sync.DeleteProduct(sku)
	if err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": sku})
}

func (s *Server) searchCatalog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	results := ref.Index().Search(body.Query)
	writeJSON(w, http.StatusOK, map[string]any{"query": body.Query, "count": len(results), "results": results})
}

func (s *Server) compareProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SKUs []string `json:"skus"`
	}
	if err := decodeJSON(r, &body); err != nil || len(body.SKUs) == 0 {
		writeError(w, http.StatusBadRequest, "skus are required")
		return
	}
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ref.Index().Compare(body.SKUs))
}

func (s *Server) uploadCatalog(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "catalog upload is not implemented")
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requirement  string   `json:"requirement"`
		Requirements []string `json:"requirements"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	if len(body.Requirements) > 0 {
		reports := make([]matching.Report, 0, len(body.Requirements))
		for _, text := range body.Requirements {
			reports = append(reports, s.matcher.Match(text, ref.Products()))
		}
		writeJSON(w, http.StatusOK, reports)
		return
	}
	writeJSON(w, http.StatusOK, s.matcher.Match(body.Requirement, ref.Products()))
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	req, err := pricing.ParseRequest(raw)
	if err != nil {
		var inputErr *pricing.InputError
		if errors.As(err, &inputErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": inputErr.Reason, "field": inputErr.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, ok := s.reference(w)
	if !ok {
		return
	}

	calc := s.calc
	if req.Policy != "" {
		if calc, err = s.calc.WithPolicy(req.Policy); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	q, err := calc.Quote(ref, req.Items, req.Tests)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.db != nil {
		if err := s.db.InsertQuote(q.ID, nil, string(q.Policy), q.GrandTotal, q); err != nil {
			s.logger.Error().Err(err).Str("rid", GetRequestID(r)).Str("quote", q.ID).Msg("persist quote")
		}
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) listTests(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ref.Tests().Entries())
}

func (s *Server) getTest(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	entry, found := ref.Tests().Lookup(pathParam(r, "name"))
	if !found {
		writeError(w, http.StatusNotFound, "test not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) putTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price        decimal.Decimal `json:"price"`
		DurationDays int             `json:"duration_days"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	entry := internal.TestPriceEntry{Name: pathParam(r, "name"), Price: body.Price, DurationDays: body.DurationDays}
	if _, err := s.sync.UpsertTest(entry); err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteTest(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	found, err := s.sync.DeleteTest(name)
	if err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "test not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) listTiers(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.reference(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ref.Tiers())
}

// putTiers replaces the whole discount schedule; order in the body does not matter.
func (s *Server) putTiers(w http.ResponseWriter, r *http.Request) {
	var tiers []internal.DiscountTier
	if err := decodeJSON(r, &tiers); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	ref, err := s.sync.SetTiers(tiers)
	if err != nil {
		s.writeWriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref.Tiers())
}

func (s *Server) listRFPs(w http.ResponseWriter, r *http.Request) {
	rfps, err := s.db.ListRFPs()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rfps)
}

func (s *Server) createRFP(w http.ResponseWriter, r *http.Request) {
	var in internal.RFP
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	existing, err := s.db.ListRFPs()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		in.ID = rfp.NextID(existing, s.now().Year())
	} else if _, dup := rfp.Find(existing, in.ID); dup {
		writeError(w, http.StatusConflict, "rfp already exists")
		return
	}
	if err := s.db.UpsertRFPs([]internal.RFP{in}); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) getRFP(w http.ResponseWriter, r *http.Request) {
	found, err := s.db.GetRFP(pathParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "rfp not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rfp":           found,
		"qualification": rfp.Qualify(*found, s.now()),
	})
}

func (s *Server) scanRFPs(w http.ResponseWriter, r *http.Request) {
	window := s.cfg.ScanWindowDays
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "window must be a non-negative integer")
			return
		}
		window = n
	}
	rfps, err := s.db.ListRFPs()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	listings := rfp.Scan(rfps, s.now(), window)
	writeJSON(w, http.StatusOK, map[string]any{"window_days": window, "count": len(listings), "rfps": listings})
}

func (s *Server) prioritizeRFPs(w http.ResponseWriter, r *http.Request) {
	rfps, err := s.db.ListRFPs()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rfp.Prioritize(rfps, s.now()))
}

func (s *Server) analyzeRFP(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.reference(w); !ok {
		return
	}
	analysis, err := s.analyzer.AnalyzeStored(pathParam(r, "id"))
	if errors.Is(err, pipeline.ErrRFPNotFound) {
		writeError(w, http.StatusNotFound, "rfp not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(pipeline.RenderMarkdown(analysis)))
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type chatResponse struct {
	Intent   pipeline.Intent    `json:"intent"`
	Reason   string             `json:"reason"`
	Reply    string             `json:"reply"`
	Listed   []rfp.Listing      `json:"listed,omitempty"`
	Analysis *pipeline.Analysis `json:"analysis,omitempty"`
}

// chat routes a free-text message. The caller sends back the ids it was shown so
// "option 2" resolves against the same list.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string   `json:"message"`
		Listed  []string `json:"listed"`
	}
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	all, err := s.db.ListRFPs()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	listed := make([]internal.RFP, 0, len(body.Listed))
	for _, id := range body.Listed {
		if found, ok := rfp.Find(all, id); ok {
			listed = append(listed, found)
		}
	}

	detected := pipeline.DetectIntent(body.Message, listed)
	resp := chatResponse{Intent: detected.Intent, Reason: detected.Reason}
	switch detected.Intent {
	case pipeline.IntentScan:
		resp.Listed = rfp.Scan(all, s.now(), s.cfg.ScanWindowDays)
		resp.Reply = scanReply(resp.Listed, s.cfg.ScanWindowDays)
	case pipeline.IntentSelect:
		if _, ok := s.reference(w); !ok {
			return
		}
		analysis, err := s.analyzer.AnalyzeStored(detected.SelectedID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp.Analysis = &analysis
		resp.Reply = pipeline.RenderMarkdown(analysis)
	default:
		resp.Reply = "Ask me to scan for RFPs, or pick one from the list by number or id."
	}
	writeJSON(w, http.StatusOK, resp)
}

func scanReply(listings []rfp.Listing, window int) string {
	if len(listings) == 0 {
		return fmt.Sprintf("No RFPs due in the next %d days.", window)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d RFPs due in the next %d days:\n", len(listings), window)
	for i, l := range listings {
		fmt.Fprintf(&b, "%d. %s %s (%s), %d days left\n", i+1, l.ID, l.Title, l.Client, l.DaysRemaining)
	}
	return b.String()
}

func (s *Server) writeWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNoStoredReference):
		writeError(w, http.StatusServiceUnavailable, "reference data not loaded")
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("rid", GetRequestID(r)).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal")
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	return strings.TrimSpace(v)
}
