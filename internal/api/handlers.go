package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/db"
	"github.com/tandemhq/tandem/backend/internal/ws"
)

type API struct {
	hub      *ws.Hub
	store    *board.Store
	database *db.Database
}

func New(hub *ws.Hub, store *board.Store, database *db.Database) *API {
	return &API{
		hub:      hub,
		store:    store,
		database: database,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"online_users":   len(a.hub.OnlineUsers()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["total_workspaces"] = dbStats["workspace_count"]
			stats["saved_boards"] = dbStats["saved_board_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Board handlers

type BoardSummary struct {
	WorkspaceID string `json:"workspace_id"`
	ActiveUsers int    `json:"active_users"`
	Actions     int    `json:"actions"`
	Undone      int    `json:"undone"`
}

type BoardResponse struct {
	WorkspaceID string         `json:"workspace_id"`
	Lines       []board.Stroke `json:"lines"`
	Shapes      []board.Shape  `json:"shapes"`
	Texts       []board.Note   `json:"texts"`
}

// BoardsRouter serves /api/boards and /api/boards/{workspaceId}.
func (a *API) BoardsRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/boards")
	path = strings.Trim(path, "/")

	if path == "" {
		a.listBoardsHandler(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getBoardHandler(w, r, path)
	case http.MethodDelete:
		a.deleteBoardHandler(w, r, path)
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *API) listBoardsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	activeRooms := a.hub.GetActiveRooms()

	boards := make([]BoardSummary, 0)
	for _, wid := range a.store.WorkspaceIDs() {
		actions, undone := a.store.Counts(wid)
		boards = append(boards, BoardSummary{
			WorkspaceID: wid,
			ActiveUsers: activeRooms[wid],
			Actions:     actions,
			Undone:      undone,
		})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{"boards": boards})
}

func (a *API) getBoardHandler(w http.ResponseWriter, r *http.Request, workspaceID string) {
	snap := a.store.Snapshot(workspaceID)
	jsonResponse(w, http.StatusOK, BoardResponse{
		WorkspaceID: workspaceID,
		Lines:       snap.Strokes,
		Shapes:      snap.Shapes,
		Texts:       snap.Notes,
	})
}

// deleteBoardHandler wipes a board from memory and the snapshot store. The
// next join sees an empty board.
func (a *API) deleteBoardHandler(w http.ResponseWriter, r *http.Request, workspaceID string) {
	a.store.Delete(workspaceID)

	if a.database != nil {
		if err := a.database.DeleteBoard(workspaceID); err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to delete saved board")
			return
		}
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted", "workspace_id": workspaceID})
}

// Workspace membership handlers

type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

// WorkspacesRouter serves /api/workspaces/{id}/members.
func (a *API) WorkspacesRouter(w http.ResponseWriter, r *http.Request) {
	if a.database == nil {
		errorResponse(w, http.StatusNotFound, "Membership store not configured")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/workspaces/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "members" {
		errorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	workspaceID := parts[0]

	switch r.Method {
	case http.MethodGet:
		members, err := a.database.ListMembers(workspaceID)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to list members")
			return
		}
		if members == nil {
			members = []string{}
		}
		jsonResponse(w, http.StatusOK, map[string]interface{}{
			"workspace_id": workspaceID,
			"members":      members,
		})

	case http.MethodPost:
		var req AddMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			errorResponse(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := a.database.AddMember(workspaceID, req.UserID); err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to add member")
			return
		}
		jsonResponse(w, http.StatusCreated, map[string]string{
			"workspace_id": workspaceID,
			"user_id":      req.UserID,
		})

	case http.MethodDelete:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			errorResponse(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := a.database.RemoveMember(workspaceID, userID); err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to remove member")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "removed"})

	default:
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// WorkspaceListHandler serves GET /api/workspaces from the database.
func (a *API) WorkspaceListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if a.database == nil {
		jsonResponse(w, http.StatusOK, map[string]interface{}{"workspaces": []db.Workspace{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	workspaces, err := a.database.ListWorkspaces(limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list workspaces")
		return
	}
	if workspaces == nil {
		workspaces = []db.Workspace{}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"workspaces": workspaces,
		"limit":      limit,
		"offset":     offset,
	})
}
