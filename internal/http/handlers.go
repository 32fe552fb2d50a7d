package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
)

const handlerTimeout = 7 * time.Second

// viewResponse is the read-model envelope: the current view (null before the
// first successful pass), the loading flag, and the last refresh error if
// any. A failed refresh still returns the stale view with status 200.
type viewResponse struct {
	Data    any    `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	d, err := s.views.Dashboard(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "Dashboard view unavailable", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}

	view, loading := d.View()
	resp := viewResponse{Loading: loading}
	if view != nil {
		resp.Data = view
	}
	if refreshErr := d.Err(); refreshErr != nil {
		resp.Error = refreshErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
		return
	}

	tf := core.Timeframe(r.URL.Query().Get("timeframe"))
	if tf == "" {
		tf = core.Monthly
	}
	if err := tf.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	a, err := s.views.Analytics(ctx, owner, tf)
	if err != nil {
		slog.ErrorContext(ctx, "Analytics view unavailable", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}

	view, loading := a.View()
	resp := viewResponse{Loading: loading}
	if view != nil {
		resp.Data = view
	}
	if refreshErr := a.Err(); refreshErr != nil {
		resp.Error = refreshErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	p, err := s.views.Profile(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "Profile view unavailable", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "profile unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, loading := p.View()
		resp := viewResponse{Loading: loading}
		if view != nil {
			resp.Data = view
		}
		if refreshErr := p.Err(); refreshErr != nil {
			resp.Error = refreshErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPut:
		var req struct {
			Email       string `json:"email"`
			FullName    string `json:"fullName"`
			Phone       string `json:"phone"`
			Address     string `json:"address"`
			MonthlyGoal string `json:"monthlyGoal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		goal := core.Money{}
		if req.MonthlyGoal != "" {
			goal, err = core.ParseMoney(req.MonthlyGoal)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid monthly goal")
				return
			}
		}
		stored, err := p.Update(ctx, core.Profile{
			ID:          owner,
			Email:       req.Email,
			FullName:    req.FullName,
			Phone:       req.Phone,
			Address:     req.Address,
			MonthlyGoal: goal,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Profile update failed", "owner_id", owner, "error", err)
			writeError(w, http.StatusInternalServerError, "profile update failed")
			return
		}
		writeJSON(w, http.StatusOK, stored)

	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type transactionRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (req transactionRequest) toTransaction(owner string, kind core.TransactionKind) (core.Transaction, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	category := req.Category
	if kind == core.Income {
		// income rows carry their source in the category slot
		category = req.Source
	}
	return core.Transaction{
		OwnerID:     owner,
		Amount:      amount,
		Category:    category,
		Description: req.Description,
		Date:        date,
		Kind:        kind,
	}, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	s.handleTransactions(w, r, core.Expense)
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request) {
	s.handleTransactions(w, r, core.Income)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, kind core.TransactionKind) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPost:
		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		tx, err := req.toTransaction(owner, kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var stored core.Transaction
		if kind == core.Expense {
			stored, err = s.tracker.AddExpense(ctx, tx)
		} else {
			stored, err = s.tracker.AddIncome(ctx, tx)
		}
		if err != nil {
			if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrEmptyCategory) ||
				errors.Is(err, core.ErrEmptyDescription) || errors.Is(err, core.ErrInvalidDate) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.ErrorContext(ctx, "Failed to save transaction", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		writeJSON(w, http.StatusCreated, stored)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id parameter")
			return
		}
		var err error
		if kind == core.Expense {
			err = s.tracker.DeleteExpense(ctx, owner, id)
		} else {
			err = s.tracker.DeleteIncome(ctx, owner, id)
		}
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			slog.ErrorContext(ctx, "Failed to delete transaction", "kind", kind, "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "POST, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Category string `json:"category"`
			Amount   string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		limit, err := core.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		stored, err := s.tracker.SetBudget(ctx, core.Budget{
			OwnerID:  owner,
			Category: req.Category,
			Limit:    limit,
		})
		if err != nil {
			if errors.Is(err, core.ErrEmptyCategory) || errors.Is(err, core.ErrInvalidAmount) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.ErrorContext(ctx, "Failed to save budget", "error", err)
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		writeJSON(w, http.StatusOK, stored)

	case http.MethodDelete:
		category := r.URL.Query().Get("category")
		if category == "" {
			writeError(w, http.StatusBadRequest, "missing category parameter")
			return
		}
		if err := s.tracker.RemoveBudget(ctx, owner, category); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			slog.ErrorContext(ctx, "Failed to delete budget", "category", category, "error", err)
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
