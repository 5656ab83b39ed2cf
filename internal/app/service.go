package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"symposium/api/internal/archive"
	"symposium/api/internal/auth"
	"symposium/api/internal/authpw"
	"symposium/api/internal/completion"
	"symposium/api/internal/config"
	"symposium/api/internal/conversation"
	"symposium/api/internal/export"
	"symposium/api/internal/gitrepo"
	"symposium/api/internal/search"
	"symposium/api/internal/session"
	"symposium/api/internal/store"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, string, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, int64) (store.User, error)
	UpdateAPIKey(context.Context, int64, *string) error

	ListProjects(context.Context, int64) ([]store.Project, error)
	GetProject(context.Context, int64, int64) (store.Project, error)
	CreateProject(context.Context, int64, string, string) (store.Project, error)
	UpdateProject(context.Context, int64, int64, string, string) (store.Project, error)
	DeleteProject(context.Context, int64, int64) error
	CreateGeneratedProject(context.Context, int64, store.GeneratedProject) (store.Project, error)

	ListObjectives(context.Context, int64, int64) ([]store.Objective, error)
	GetObjective(context.Context, int64, int64) (store.Objective, error)
	GetObjectiveLineage(context.Context, int64, int64) (store.ObjectiveLineage, error)
	CreateObjective(context.Context, int64, int64, string, string) (store.Objective, error)
	UpdateObjective(context.Context, int64, int64, string, string) (store.Objective, error)
	DeleteObjective(context.Context, int64, int64) error
	ReorderObjective(context.Context, int64, int64, int) (store.Objective, error)

	ListTasks(context.Context, int64, int64) ([]store.Task, error)
	CreateTask(context.Context, int64, int64, string, string) (store.Task, error)
	UpdateTask(context.Context, int64, int64, string, string) (store.Task, error)
	ToggleTaskCompleted(context.Context, int64, int64) (store.Task, error)
	DeleteTask(context.Context, int64, int64) error
	ReorderTask(context.Context, int64, int64, int) (store.Task, error)

	ListMessages(context.Context, int64, int64) ([]store.Message, error)
	ListVisibleMessages(context.Context, int64, int64, int64) ([]store.Message, error)
	AppendMessage(context.Context, store.NewMessage) (store.Message, error)
	GetMessage(context.Context, int64, int64) (store.Message, error)
	ToggleMessageHidden(context.Context, int64, int64) (store.Message, error)
	DeleteMessage(context.Context, int64, int64) error

	ListCards(context.Context, int64) ([]store.ContentCard, error)
	ListPromptCards(context.Context, int64, []int64) ([]store.ContentCard, error)
	GetCard(context.Context, int64, int64) (store.ContentCard, error)
	CreateCard(context.Context, int64, string, string, []int64) (store.ContentCard, error)
	UpdateCard(context.Context, int64, int64, string, string, []int64) (store.ContentCard, error)
	ToggleCardHidden(context.Context, int64, int64) (store.ContentCard, error)
	DeleteCard(context.Context, int64, int64) error
	AddCardTags(context.Context, int64, int64, []int64) (store.ContentCard, error)
	RemoveCardTag(context.Context, int64, int64, int64) error

	ListTags(context.Context, int64) ([]store.Tag, error)
	CreateTag(context.Context, int64, string, string) (store.Tag, error)
	UpdateTag(context.Context, int64, int64, string, string) (store.Tag, error)
	DeleteTag(context.Context, int64, int64) error

	refreshStore
	Ping(ctx context.Context) error
}

// refreshStore holds hashed refresh tokens. Redis serves it when configured;
// the Postgres store is the fallback.
type refreshStore interface {
	SaveRefreshSession(context.Context, string, int64, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type completionClient interface {
	conversation.Completer
	PlanStructure(ctx context.Context, credential, model, description string) (completion.Plan, error)
	ListModels(ctx context.Context, credential string) ([]completion.Model, error)
	Credits(ctx context.Context, credential string) (completion.Credits, error)
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexCard(card search.CardRecord)
	DeleteCard(id int64)
}

type historyService interface {
	Record(cardID int64, content gitrepo.Content, author, message string) (gitrepo.Revision, error)
	History(cardID int64, limit int) ([]gitrepo.Revision, error)
	Get(cardID int64, hash string) (gitrepo.Content, gitrepo.Revision, error)
	Remove(cardID int64) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type archiver interface {
	Put(ctx context.Context, obj archive.Object) (archive.Archived, error)
}

// Dependencies are the collaborators New wires into the service. Only Store
// and Completion are required.
type Dependencies struct {
	Store      *store.PostgresStore
	Sessions   *session.RedisStore
	Completion *completion.Client
	Search     *search.Service
	History    *gitrepo.Service
	Archive    *archive.Store
	Logger     *zap.Logger
}

type Service struct {
	cfg        config.Config
	store      dataStore
	sessions   refreshStore
	passwords  *authpw.Service
	completion completionClient
	pipeline   *conversation.Pipeline
	search     searchService
	history    historyService
	exporter   exporter
	archive    archiver
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg config.Config, deps Dependencies) *Service {
	s := newService(cfg, deps.Store, deps.Completion, deps.Logger)
	if deps.Sessions != nil {
		s.sessions = deps.Sessions
	}
	if deps.Search != nil {
		s.search = deps.Search
	}
	if deps.History != nil {
		s.history = deps.History
	}
	if deps.Archive != nil {
		s.archive = deps.Archive
	}
	return s
}

func newService(cfg config.Config, st dataStore, completer completionClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		store:      st,
		sessions:   st,
		passwords:  authpw.NewService(st),
		completion: completer,
		pipeline:   conversation.NewPipeline(st, completer, logger),
		exporter:   export.NewService(st),
		logger:     logger.Named("app"),
		now:        time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password string) (store.User, Session, error) {
	user, err := s.passwords.Register(ctx, email, password)
	if err != nil {
		return store.User{}, Session{}, err
	}
	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return store.User{}, Session{}, err
	}
	return user, sess, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (store.User, Session, error) {
	user, err := s.passwords.Login(ctx, email, password)
	if err != nil {
		return store.User{}, Session{}, err
	}
	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return store.User{}, Session{}, err
	}
	return user, sess, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	owner, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	claims := auth.NewClaims(user.ID, user.Email, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return Session{}, err
	}
	refreshExpires := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		JTI:          claims.JTI,
		ExpiresAt:    time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) CurrentUser(ctx context.Context, userID int64) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	return user, notFoundAs(err, "User")
}

// SetAPIKey stores the user's OpenRouter key. A blank key clears it.
func (s *Service) SetAPIKey(ctx context.Context, userID int64, apiKey string) error {
	var key *string
	if trimmed := strings.TrimSpace(apiKey); trimmed != "" {
		key = &trimmed
	}
	return notFoundAs(s.store.UpdateAPIKey(ctx, userID, key), "User")
}

func (s *Service) credential(ctx context.Context, userID int64) (string, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", notFoundAs(err, "User")
	}
	return user.APIKey(), nil
}

func (s *Service) requireCredential(ctx context.Context, userID int64, missing string) (string, error) {
	key, err := s.credential(ctx, userID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", domainError(http.StatusBadRequest, "INVALID_INPUT", missing, nil)
	}
	return key, nil
}

func (s *Service) ListModels(ctx context.Context, userID int64) ([]completion.Model, error) {
	key, err := s.requireCredential(ctx, userID, "OpenRouter API key not configured")
	if err != nil {
		return nil, err
	}
	models, err := s.completion.ListModels(ctx, key)
	if err != nil {
		return nil, upstreamError("Failed to fetch models", err)
	}
	return models, nil
}

func (s *Service) Credits(ctx context.Context, userID int64) (completion.Credits, error) {
	key, err := s.requireCredential(ctx, userID, "OpenRouter API key not configured")
	if err != nil {
		return completion.Credits{}, err
	}
	credits, err := s.completion.Credits(ctx, key)
	if err != nil {
		return completion.Credits{}, upstreamError("Failed to fetch credits", err)
	}
	return credits, nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"hasApiKey": user.APIKey() != "",
	}
}
