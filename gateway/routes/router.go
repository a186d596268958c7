package routes

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"bonuschain/core/state"
	"bonuschain/core/types"
	"bonuschain/crypto"
	"bonuschain/gateway/middleware"
	"bonuschain/native/bonus"
)

// Reader is the read-only view of the node served by the API.
type Reader interface {
	View(fn func(*bonus.Engine) error) error
	Balance(addr [20]byte) (*big.Int, error)
	Token() (*state.TokenMetadata, error)
	Height() uint64
}

// Node adds atomic engine calls to Reader. core/node.Node satisfies it.
type Node interface {
	Reader
	Apply(ctx context.Context, call string, fn func(*bonus.Engine) error) ([]types.Event, error)
}

type Config struct {
	Node           Node
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter
	Observability  *middleware.Observability
	// Authenticator enables the /v1/calls and /v1/admin routes. Without it
	// the API is read-only.
	Authenticator *middleware.Authenticator
}

// New builds the bonus API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, errors.New("routes: node required")
	}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	h := &handlers{node: cfg.Node}
	group := func(name string, fn func(chi.Router)) {
		r.Group(func(sr chi.Router) {
			if cfg.Observability != nil {
				sr.Use(cfg.Observability.Middleware(name))
			}
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware(name))
			}
			fn(sr)
		})
	}
	group("round", func(sr chi.Router) { sr.Get("/v1/round", h.round) })
	group("latest", func(sr chi.Router) { sr.Get("/v1/round/latest", h.latest) })
	group("slots", func(sr chi.Router) { sr.Get("/v1/slots/{position}", h.slot) })
	group("accounts", func(sr chi.Router) { sr.Get("/v1/accounts/{address}", h.account) })

	if cfg.Authenticator != nil {
		group("calls", func(sr chi.Router) {
			sr.Use(cfg.Authenticator.Middleware())
			sr.Post("/v1/calls/create", h.create)
			sr.Post("/v1/calls/upgrade", h.upgrade)
			sr.Post("/v1/calls/open", h.open)
		})
		group("admin", func(sr chi.Router) {
			sr.Use(cfg.Authenticator.Middleware(middleware.ScopeAdmin))
			sr.Post("/v1/admin/init", h.initRound)
			sr.Post("/v1/admin/status", h.setStatus)
			sr.Post("/v1/admin/ops-budget", h.setOpsBudget)
			sr.Post("/v1/admin/max-active", h.presetMaxActive)
			sr.Post("/v1/admin/players/{address}/status", h.setPlayerStatus)
		})
	}
	return r, nil
}

type handlers struct {
	node Node
}

type roundResponse struct {
	Height         uint64            `json:"height"`
	Status         string            `json:"status"`
	RoundCount     uint64            `json:"roundCount"`
	Timeout        uint32            `json:"timeout"`
	UnitPrice      string            `json:"unitPrice"`
	AveragePrize   string            `json:"averagePrize"`
	ActiveCount    uint64            `json:"activeCount"`
	MaxActiveCount uint64            `json:"maxActiveCount"`
	AllSlotsCount  uint64            `json:"allSlotsCount"`
	RoundStart     uint64            `json:"roundStartPosition"`
	DrainCursor    uint64            `json:"drainCursor"`
	OpeningCount   uint64            `json:"openingCount"`
	PlayerCount    uint64            `json:"playerCount"`
	OpsBudget      uint32            `json:"opsBudget"`
	Pools          map[string]string `json:"pools"`
}

func (h *handlers) round(w http.ResponseWriter, r *http.Request) {
	var resp roundResponse
	err := h.node.View(func(e *bonus.Engine) error {
		round, err := e.Round()
		if err != nil {
			return err
		}
		resp = roundResponse{
			Status:         round.Status.String(),
			RoundCount:     round.RoundCount,
			Timeout:        round.Timeout,
			UnitPrice:      round.UnitPrice.String(),
			AveragePrize:   round.AveragePrize.String(),
			ActiveCount:    round.ActiveCount,
			MaxActiveCount: round.MaxActiveCount,
			AllSlotsCount:  round.AllSlotsCount,
			RoundStart:     round.RoundStartPosition,
			DrainCursor:    round.DrainCursor,
			OpeningCount:   round.OpeningCount,
			PlayerCount:    round.PlayerCount,
			OpsBudget:      round.OpsBudget,
			Pools:          make(map[string]string),
		}
		for _, role := range bonus.PoolRoles() {
			balance, err := e.PoolBalance(role)
			if err != nil {
				return err
			}
			resp.Pools[string(role)] = balance.String()
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp.Height = h.node.Height()
	writeJSON(w, http.StatusOK, resp)
}

type latestEntry struct {
	Owner          string `json:"owner"`
	CreatePosition uint64 `json:"createPosition"`
}

func (h *handlers) latest(w http.ResponseWriter, r *http.Request) {
	var out []latestEntry
	err := h.node.View(func(e *bonus.Engine) error {
		entries, err := e.LatestEntries()
		if err != nil {
			return err
		}
		out = make([]latestEntry, 0, len(entries))
		for _, entry := range entries {
			out = append(out, latestEntry{
				Owner:          crypto.FormatAccount(entry.Owner),
				CreatePosition: entry.CreatePosition,
			})
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type slotResponse struct {
	ID             string  `json:"id"`
	Owner          string  `json:"owner"`
	CreatePosition uint64  `json:"createPosition"`
	Status         string  `json:"status"`
	Value          string  `json:"value"`
	Invitor        *string `json:"invitor,omitempty"`
	OpenPosition   uint64  `json:"openPosition"`
	BonusPerSlot   string  `json:"bonusPerSlot"`
	BonusCursor    uint64  `json:"bonusCursor"`
	Round          uint64  `json:"round"`
}

func newSlotResponse(slot *bonus.Slot) slotResponse {
	resp := slotResponse{
		ID:             hexutil.Encode(slot.ID[:]),
		Owner:          crypto.FormatAccount(slot.Owner),
		CreatePosition: slot.CreatePosition,
		Status:         slot.Status.String(),
		Value:          slot.Value.String(),
		OpenPosition:   slot.OpenPosition,
		BonusPerSlot:   slot.BonusPerSlot.String(),
		BonusCursor:    slot.BonusCursor,
		Round:          slot.Round,
	}
	if slot.Invitor != nil {
		invitor := crypto.FormatAccount(*slot.Invitor)
		resp.Invitor = &invitor
	}
	return resp
}

func (h *handlers) slot(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.ParseUint(chi.URLParam(r, "position"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot position")
		return
	}
	var resp slotResponse
	err = h.node.View(func(e *bonus.Engine) error {
		slot, err := e.Slot(position)
		if err != nil {
			return err
		}
		resp = newSlotResponse(slot)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type accountResponse struct {
	Address   string         `json:"address"`
	Balance   string         `json:"balance"`
	Symbol    string         `json:"symbol"`
	Decimals  uint8          `json:"decimals"`
	SlotCount uint64         `json:"slotCount"`
	Player    *playerSummary `json:"player,omitempty"`
}

type playerSummary struct {
	Status          string `json:"status"`
	TotalBonus      string `json:"totalBonus"`
	TotalPrize      string `json:"totalPrize"`
	TotalCommission string `json:"totalCommission"`
}

func (h *handlers) account(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAccount(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	balance, err := h.node.Balance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := h.node.Token()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := accountResponse{
		Address:  crypto.FormatAccount(addr),
		Balance:  balance.String(),
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
	}
	err = h.node.View(func(e *bonus.Engine) error {
		count, err := e.OwnedSlotCount(addr)
		if err != nil {
			return err
		}
		resp.SlotCount = count
		player, err := e.Player(addr)
		if errors.Is(err, bonus.ErrPlayerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		resp.Player = &playerSummary{
			Status:          player.Status.String(),
			TotalBonus:      player.TotalBonus.String(),
			TotalPrize:      player.TotalPrize.String(),
			TotalCommission: player.TotalCommission.String(),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bonus.ErrNotInitialized),
		errors.Is(err, bonus.ErrSlotNotFound),
		errors.Is(err, bonus.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	switch bonus.KindOf(err) {
	case bonus.KindAuthorization:
		writeError(w, http.StatusForbidden, err.Error())
	case bonus.KindPrecondition, bonus.KindConsistency:
		writeError(w, http.StatusConflict, err.Error())
	case bonus.KindResource:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
