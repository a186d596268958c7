package routes

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"bonuschain/core/types"
	"bonuschain/crypto"
	"bonuschain/gateway/middleware"
	"bonuschain/native/bonus"
)

const maxCallBody = 1 << 16

type callResponse struct {
	Events []types.Event `json:"events"`
	Slot   *slotResponse `json:"slot,omitempty"`
}

// slotRef selects a slot by ID or by index among the caller's slots.
type slotRef struct {
	ID    string  `json:"id,omitempty"`
	Index *uint64 `json:"index,omitempty"`
}

func (ref slotRef) resolve() (id [32]byte, byIndex bool, err error) {
	switch {
	case ref.Index != nil && ref.ID != "":
		return id, false, errors.New("id and index are mutually exclusive")
	case ref.Index != nil:
		return id, true, nil
	}
	raw, err := hexutil.Decode(ref.ID)
	if err != nil || len(raw) != len(id) {
		return id, false, errors.New("invalid slot id")
	}
	copy(id[:], raw)
	return id, false, nil
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var body struct {
		Invitor string `json:"invitor,omitempty"`
	}
	if !decodeBody(w, r, &body, true) {
		return
	}
	var invitor *[20]byte
	if body.Invitor != "" {
		addr, err := crypto.ParseAccount(body.Invitor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid invitor")
			return
		}
		invitor = &addr
	}
	var created *bonus.Slot
	emitted, err := h.node.Apply(r.Context(), "create", func(e *bonus.Engine) error {
		slot, err := e.Create(caller, invitor)
		created = slot
		return err
	})
	h.respond(w, emitted, created, err)
}

func (h *handlers) upgrade(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var ref slotRef
	if !decodeBody(w, r, &ref, false) {
		return
	}
	id, byIndex, err := ref.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var created *bonus.Slot
	emitted, err := h.node.Apply(r.Context(), "upgrade", func(e *bonus.Engine) error {
		var err error
		if byIndex {
			created, err = e.UpgradeByIndex(caller, *ref.Index)
		} else {
			created, err = e.Upgrade(caller, id)
		}
		return err
	})
	h.respond(w, emitted, created, err)
}

func (h *handlers) open(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var ref slotRef
	if !decodeBody(w, r, &ref, false) {
		return
	}
	id, byIndex, err := ref.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emitted, err := h.node.Apply(r.Context(), "open", func(e *bonus.Engine) error {
		if byIndex {
			return e.OpenByIndex(caller, *ref.Index)
		}
		return e.Open(caller, id)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) initRound(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var body struct {
		UnitPrice string `json:"unitPrice"`
	}
	if !decodeBody(w, r, &body, false) {
		return
	}
	price, ok := new(big.Int).SetString(body.UnitPrice, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid unit price")
		return
	}
	emitted, err := h.node.Apply(r.Context(), "init", func(e *bonus.Engine) error {
		return e.Init(caller, price)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body, false) {
		return
	}
	status, ok := bonus.ParseRoundStatus(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown round status")
		return
	}
	emitted, err := h.node.Apply(r.Context(), "set_status", func(e *bonus.Engine) error {
		return e.SetStatus(caller, status)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) setOpsBudget(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var body struct {
		Budget *uint32 `json:"budget"`
	}
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Budget == nil {
		writeError(w, http.StatusBadRequest, "budget required")
		return
	}
	emitted, err := h.node.Apply(r.Context(), "set_ops_budget", func(e *bonus.Engine) error {
		return e.SetOpsBudget(caller, *body.Budget)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) presetMaxActive(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var body struct {
		Count *uint64 `json:"count"`
	}
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Count == nil {
		writeError(w, http.StatusBadRequest, "count required")
		return
	}
	emitted, err := h.node.Apply(r.Context(), "preset_max_active", func(e *bonus.Engine) error {
		return e.PresetMaxActive(caller, *body.Count)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) setPlayerStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	player, err := crypto.ParseAccount(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body, false) {
		return
	}
	status, ok := bonus.ParsePlayerStatus(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown player status")
		return
	}
	emitted, err := h.node.Apply(r.Context(), "set_player_status", func(e *bonus.Engine) error {
		return e.SetPlayerStatus(caller, player, status)
	})
	h.respond(w, emitted, nil, err)
}

func (h *handlers) respond(w http.ResponseWriter, emitted []types.Event, slot *bonus.Slot, err error) {
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := callResponse{Events: emitted}
	if resp.Events == nil {
		resp.Events = []types.Event{}
	}
	if slot != nil {
		out := newSlotResponse(slot)
		resp.Slot = &out
	}
	writeJSON(w, http.StatusOK, resp)
}

func callerOrReject(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "caller unknown")
	}
	return caller, ok
}

// decodeBody reads a JSON body into out. allowEmpty accepts a missing body.
func decodeBody(w http.ResponseWriter, r *http.Request, out any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(out)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}
