package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"climb-server/internal/climb"
	"climb-server/internal/database"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws/game/{gameId}", s.websocketHandler).Methods(http.MethodGet)

	users := r.PathPrefix("/users").Subrouter()
	users.HandleFunc("/register", s.registerHandler).Methods(http.MethodPost)
	users.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)

	cards := r.PathPrefix("/cards").Subrouter()
	cards.HandleFunc("/info", s.cardsHandler).Methods(http.MethodGet)
	cards.HandleFunc("/info/{cardId}", s.cardHandler).Methods(http.MethodGet)

	board := r.PathPrefix("/board").Subrouter()
	board.HandleFunc("/squares", s.squaresHandler).Methods(http.MethodGet)
	board.HandleFunc("/squares/{position}", s.squareHandler).Methods(http.MethodGet)
	board.HandleFunc("/special-squares", s.specialSquaresHandler).Methods(http.MethodGet)
	board.HandleFunc("/elevator-landings", s.elevatorLandingsHandler).Methods(http.MethodGet)
	board.HandleFunc("/calculate-floor/{position}", s.calculateFloorHandler).Methods(http.MethodGet)

	// Everything below needs a bearer token.
	private := r.NewRoute().Subrouter()
	private.Use(s.authMiddleware)

	private.HandleFunc("/users/logout", s.logoutHandler).Methods(http.MethodPost)
	private.HandleFunc("/users/profile", s.profileHandler).Methods(http.MethodGet)

	private.HandleFunc("/games/create", s.createGameHandler).Methods(http.MethodPost)
	private.HandleFunc("/games/find-or-create", s.findOrCreateHandler).Methods(http.MethodPost)
	private.HandleFunc("/games/join", s.joinGameHandler).Methods(http.MethodPost)
	private.HandleFunc("/games/active", s.activeGamesHandler).Methods(http.MethodGet)
	private.HandleFunc("/games/available", s.availableGamesHandler).Methods(http.MethodGet)
	private.HandleFunc("/games/{gameId}", s.getGameHandler).Methods(http.MethodGet)
	private.HandleFunc("/games/{gameId}/hand", s.handHandler).Methods(http.MethodGet)
	private.HandleFunc("/games/{gameId}/ready", s.readyHandler).Methods(http.MethodPost)
	private.HandleFunc("/games/{gameId}/roll-dice", s.rollDiceHandler).Methods(http.MethodPost)
	private.HandleFunc("/games/{gameId}/leave", s.leaveHandler).Methods(http.MethodPost)

	private.HandleFunc("/cards/draw", s.drawCardHandler).Methods(http.MethodPost)
	private.HandleFunc("/cards/play", s.playCardHandler).Methods(http.MethodPost)

	private.HandleFunc("/chat/send", s.sendChatHandler).Methods(http.MethodPost)
	private.HandleFunc("/chat/messages/{gameId}", s.chatMessagesHandler).Methods(http.MethodGet)

	return loggingMiddleware(corsMiddleware(s.cfg.AllowedOrigins, s.httpLimiter.Middleware(r)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func statusFor(kind climb.Kind) int {
	switch kind {
	case climb.KindValidation:
		return http.StatusBadRequest
	case climb.KindConflict:
		return http.StatusConflict
	case climb.KindNotFound:
		return http.StatusNotFound
	case climb.KindState:
		return http.StatusUnprocessableEntity
	case climb.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage maps err to its public form. Internal errors are logged and
// replaced with a generic message.
func errorMessage(err error) (int, ErrorMessage) {
	if e, ok := climb.AsError(err); ok {
		return statusFor(e.Kind), ErrorMessage{Code: e.Code, Message: e.Message}
	}
	log.Printf("Internal error: %v", err)
	return http.StatusInternalServerError, ErrorMessage{Code: "INTERNAL", Message: "Internal server error"}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := errorMessage(err)
	writeJSON(w, status, msg)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return climb.Validation("Invalid JSON body")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, climb.Validation("Invalid " + name)
	}
	return id, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, climb.Validation("Invalid " + name)
	}
	return n, nil
}

func currentUser(r *http.Request) climb.User {
	u, _ := userFromContext(r.Context())
	return u
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "up"}
	if s.pool != nil {
		status = database.Health(r.Context(), s.pool)
	} else if err := s.store.Ping(r.Context()); err != nil {
		status = map[string]string{"status": "down", "error": err.Error()}
	}

	code := http.StatusOK
	if status["status"] != "up" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// ============================================================================
// USERS
// ============================================================================

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Token: res.Token, User: newUserView(res.User)})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Username, req.Password, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: res.Token, User: newUserView(res.User)})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), currentUser(r).ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

// ============================================================================
// GAMES
// ============================================================================

func (s *Server) respondWithGame(w http.ResponseWriter, r *http.Request, status int, gameID uuid.UUID, created bool) {
	snap, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, GameResponse{Game: newGameView(snap), Created: created})
}

func (s *Server) createGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	g, err := s.games.CreateRoom(r.Context(), currentUser(r).ID, req.MaxPlayers, isPublic)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondWithGame(w, r, http.StatusCreated, g.ID, true)
}

func (s *Server) findOrCreateHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.games.FindOrCreate(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondWithGame(w, r, http.StatusOK, res.Game.ID, res.Created)
}

func (s *Server) joinGameHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Code == "" {
		s.findOrCreateHandler(w, r)
		return
	}

	g, err := s.games.JoinByCode(r.Context(), currentUser(r).ID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondWithGame(w, r, http.StatusOK, g.ID, false)
}

func (s *Server) getGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondWithGame(w, r, http.StatusOK, gameID, false)
}

func (s *Server) activeGamesHandler(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.Active(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, newGameSummary(g, 0))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) availableGamesHandler(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.Available(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]GameSummary, 0, len(games))
	for _, ag := range games {
		out = append(out, newGameSummary(ag.Game, ag.PlayerCount))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	hand, err := s.games.Hand(r.Context(), gameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHandResponse(hand.Cards))
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.MarkReady(r.Context(), gameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Started: res.Started})
}

func (s *Server) rollDiceHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.RollDice(r.Context(), gameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) leaveHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.Leave(r.Context(), gameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveResponse{GameDeleted: res.GameDeleted})
}

// ============================================================================
// CARDS
// ============================================================================

func (s *Server) cardsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, climb.Cards())
}

func (s *Server) cardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "cardId")
	if err != nil {
		writeError(w, err)
		return
	}
	card, err := climb.CardByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) drawCardHandler(w http.ResponseWriter, r *http.Request) {
	var req DrawCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.Draw(r.Context(), req.GameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) playCardHandler(w http.ResponseWriter, r *http.Request) {
	var req PlayCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.Play(r.Context(), req.GameID, currentUser(r).ID, req.CardID, req.TargetPlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ============================================================================
// BOARD
// ============================================================================

func (s *Server) squaresHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, climb.Board())
}

func (s *Server) squareHandler(w http.ResponseWriter, r *http.Request) {
	pos, err := pathInt(r, "position")
	if err != nil {
		writeError(w, err)
		return
	}
	sq, err := climb.SquareAt(pos)
	if err != nil {
		writeError(w, climb.ErrSquareNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sq)
}

func (s *Server) specialSquaresHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, climb.SpecialSquares())
}

func (s *Server) elevatorLandingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, climb.ElevatorLandings())
}

func (s *Server) calculateFloorHandler(w http.ResponseWriter, r *http.Request) {
	pos, err := pathInt(r, "position")
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := climb.CalculateFloor(pos)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ============================================================================
// CHAT
// ============================================================================

func (s *Server) sendChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.games.SendChat(r.Context(), req.GameID, currentUser(r).ID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) chatMessagesHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.games.ChatHistory(r.Context(), gameID, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
