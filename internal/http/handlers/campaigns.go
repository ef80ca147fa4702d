package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/domain"
)

type campaignResponse struct {
	ID                  string    `json:"id"`
	Manager             string    `json:"manager"`
	MinimumContribution string    `json:"minimum_contribution"`
	Balance             string    `json:"balance"`
	ContributorsCount   int       `json:"contributors_count"`
	RequestsCount       int       `json:"requests_count"`
	CreatedAt           time.Time `json:"created_at"`
}

type requestResponse struct {
	Index         int        `json:"index"`
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Value         string     `json:"value"`
	Recipient     string     `json:"recipient"`
	ApprovalCount int        `json:"approval_count"`
	Complete      bool       `json:"complete"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:                  c.ID,
		Manager:             c.Manager.String(),
		MinimumContribution: c.MinimumContribution.String(),
		Balance:             c.Balance.String(),
		ContributorsCount:   c.ContributorsCount(),
		RequestsCount:       len(c.Requests),
		CreatedAt:           c.CreatedAt,
	}
}

func toRequestResponse(r *domain.Request) requestResponse {
	return requestResponse{
		Index:         r.Index,
		ID:            r.ID,
		Description:   r.Description,
		Value:         r.Value.String(),
		Recipient:     r.Recipient.String(),
		ApprovalCount: r.ApprovalCount(),
		Complete:      r.Complete,
		Status:        string(r.Status()),
		CreatedAt:     r.CreatedAt,
		FinalizedAt:   r.FinalizedAt,
	}
}

func (a *App) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	ids, err := a.Service.DeployedCampaigns(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": ids})
}

func (a *App) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		MinimumContribution string `json:"minimum_contribution"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	minimum, err := domain.ParseAmount("minimum_contribution", req.MinimumContribution)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.Service.CreateCampaign(r.Context(), caller, minimum)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/campaigns/"+c.ID)
	a.json(w, http.StatusCreated, toCampaignResponse(c))
}

func (a *App) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := a.Service.Campaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toCampaignResponse(c))
}

func (a *App) Contribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount string `json:"amount"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount("amount", req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.Service.Contribute(r.Context(), chi.URLParam(r, "id"), caller, amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toCampaignResponse(c))
}

func (a *App) IsContributor(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok, err := a.Service.IsContributor(r.Context(), chi.URLParam(r, "id"), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"identity": id, "contributor": ok})
}

func (a *App) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.Service.Requests(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, toRequestResponse(req))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreateRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Description string `json:"description"`
		Value       string `json:"value"`
		Recipient   string `json:"recipient"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	value, err := domain.ParseAmount("value", body.Value)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recipient, err := domain.ParseIdentity(body.Recipient)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	campaignID := chi.URLParam(r, "id")
	req, err := a.Service.CreateRequest(r.Context(), campaignID, caller, body.Description, value, recipient)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/campaigns/"+campaignID+"/requests/"+strconv.Itoa(req.Index))
	a.json(w, http.StatusCreated, toRequestResponse(req))
}

func (a *App) GetRequest(w http.ResponseWriter, r *http.Request) {
	index, ok := a.requestIndex(w, r)
	if !ok {
		return
	}
	req, err := a.Service.Request(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toRequestResponse(req))
}

func (a *App) HasApproved(w http.ResponseWriter, r *http.Request) {
	index, ok := a.requestIndex(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	approved, err := a.Service.HasApproved(r.Context(), chi.URLParam(r, "id"), index, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"identity": id, "approved": approved})
}

func (a *App) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	index, ok := a.requestIndex(w, r)
	if !ok {
		return
	}
	req, err := a.Service.ApproveRequest(r.Context(), chi.URLParam(r, "id"), index, caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toRequestResponse(req))
}

func (a *App) FinalizeRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	index, ok := a.requestIndex(w, r)
	if !ok {
		return
	}
	req, err := a.Service.FinalizeRequest(r.Context(), chi.URLParam(r, "id"), index, caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toRequestResponse(req))
}

func (a *App) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	balance, err := a.Service.Balance(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"identity": id.String(), "balance": balance.String()})
}

// requestIndex parses the {index} path segment. Malformed indexes name no
// request, so they are reported as not found.
func (a *App) requestIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		a.error(w, http.StatusNotFound, "not_found", "request not found")
		return 0, false
	}
	return index, true
}
