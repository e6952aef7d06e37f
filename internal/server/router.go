package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/tempchan/internal/allocator"
	"github.com/loykin/tempchan/internal/manager"
	"github.com/loykin/tempchan/internal/metrics"
	"github.com/loykin/tempchan/internal/slot"
)

// Router provides embeddable HTTP handlers for the slot manager.
// Endpoints:
//   GET  {basePath}/healthz      liveness probe
//   GET  {basePath}/slots        tracked slots, creation order
//   GET  {basePath}/groups       configured groups
//   GET  {basePath}/pending      live pending pick requests
//   POST {basePath}/allocate     body: {"group_id": ..., "member_id": ..., "name": ...}
//   POST {basePath}/pick         body: {"member_id": ..., "name": ...}
//   POST {basePath}/evict        body: {"slot_id": ...}
//   GET  {basePath}/metrics      prometheus exposition
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	mgr      *manager.Manager
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/slots, /api/allocate, ...
func NewRouter(mgr *manager.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/slots", r.handleSlots)
	group.GET("/groups", r.handleGroups)
	group.GET("/pending", r.handlePending)
	group.POST("/allocate", r.handleAllocate)
	group.POST("/pick", r.handlePick)
	group.POST("/evict", r.handleEvict)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Shutdown or Close.
func NewServer(addr, basePath string, mgr *manager.Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type slotResp struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastEmptyAt *time.Time `json:"last_empty_at,omitempty"`
}

type groupResp struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Container string   `json:"container"`
	Trigger   string   `json:"trigger"`
	Presets   []string `json:"presets"`
}

type pendingResp struct {
	MemberID  string    `json:"member_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type allocateReq struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
	Name     string `json:"name,omitempty"`
}

type pickReq struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

type evictReq struct {
	SlotID string `json:"slot_id"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleSlots(c *gin.Context) {
	slots := r.mgr.Slots(c.Request.Context())
	out := make([]slotResp, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResp(s))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleGroups(c *gin.Context) {
	groups := r.mgr.Catalog().Groups()
	out := make([]groupResp, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResp{
			ID:        g.ID,
			Label:     g.Label,
			Container: g.Container,
			Trigger:   g.Trigger,
			Presets:   g.Presets,
		})
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handlePending(c *gin.Context) {
	reqs := r.mgr.Pending()
	out := make([]pendingResp, 0, len(reqs))
	for _, p := range reqs {
		out = append(out, pendingResp{
			MemberID:  p.MemberID,
			GroupID:   p.GroupID,
			CreatedAt: p.CreatedAt,
			ExpiresAt: p.ExpiresAt,
		})
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleAllocate(c *gin.Context) {
	var req allocateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.GroupID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "group_id required"})
		return
	}
	s, err := r.mgr.Allocate(c.Request.Context(), allocator.Request{
		GroupID:  req.GroupID,
		MemberID: req.MemberID,
		Name:     req.Name,
	})
	writeAllocation(c, s, err)
}

func (r *Router) handlePick(c *gin.Context) {
	var req pickReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.MemberID == "" || req.Name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "member_id and name required"})
		return
	}
	s, err := r.mgr.CompletePick(c.Request.Context(), req.MemberID, req.Name)
	writeAllocation(c, s, err)
}

func (r *Router) handleEvict(c *gin.Context) {
	var req evictReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.SlotID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "slot_id required"})
		return
	}
	if err := r.mgr.EvictIfEmpty(c.Request.Context(), req.SlotID); err != nil {
		if errors.Is(err, manager.ErrOccupied) {
			writeJSON(c, http.StatusConflict, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// writeAllocation maps the allocation error taxonomy to HTTP statuses. A slot
// whose requester could not be moved in still exists, so the response carries
// it with 200 and a warning.
func writeAllocation(c *gin.Context, s slot.Slot, err error) {
	var moveErr *slot.MoveFailedError
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, toSlotResp(s))
	case errors.As(err, &moveErr):
		writeJSON(c, http.StatusOK, struct {
			slotResp
			Warning string `json:"warning"`
		}{toSlotResp(s), "member move failed"})
	case errors.Is(err, slot.ErrUnknownGroup), errors.Is(err, slot.ErrUnknownPreset):
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, slot.ErrNoCapacity), errors.Is(err, slot.ErrRaceLost):
		writeJSON(c, http.StatusConflict, errorResp{Error: err.Error()})
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
	}
}

func toSlotResp(s slot.Slot) slotResp {
	return slotResp{
		ID:          s.ID,
		GroupID:     s.GroupID,
		Name:        s.PresetName,
		CreatedAt:   s.CreatedAt,
		LastEmptyAt: s.LastEmptyAt,
	}
}
