package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type Storage interface {
	GetProducts(ctx context.Context, filter storage.ProductFilter) ([]*storage.Product, error)
	GetProduct(ctx context.Context, id string) (*storage.Product, error)
	CreateProduct(ctx context.Context, actorID string, in storage.ProductInput) (*storage.Product, error)
	UpdateProduct(ctx context.Context, actorID, id string, upd storage.ProductUpdate) (*storage.Product, error)
	DeleteProduct(ctx context.Context, actorID, id string) error

	GetBanners(ctx context.Context) ([]*storage.Banner, error)
	GetActiveBanners(ctx context.Context) ([]*storage.Banner, error)
	CreateBanner(ctx context.Context, actorID string, in storage.BannerInput) (*storage.Banner, error)
	UpdateBanner(ctx context.Context, actorID, id string, upd storage.BannerUpdate) (*storage.Banner, error)
	DeleteBanner(ctx context.Context, actorID, id string) error

	GetOrders(ctx context.Context) ([]*storage.Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]*storage.Order, error)
	GetOrder(ctx context.Context, id string) (*storage.Order, error)
	PlaceOrder(ctx context.Context, actorID string, in storage.OrderInput) (*storage.Order, error)
	UpdateOrderStatus(ctx context.Context, actorID, id string, change storage.OrderStatusChange) (*storage.Order, error)

	GetRequests(ctx context.Context) ([]*storage.CustomRequest, error)
	GetUserRequests(ctx context.Context, userID string) ([]*storage.CustomRequest, error)
	GetRequest(ctx context.Context, id string) (*storage.CustomRequest, error)
	CreateRequest(ctx context.Context, actorID string, in storage.RequestInput) (*storage.CustomRequest, error)
	UpdateRequestStatus(ctx context.Context, actorID, id string, change storage.RequestStatusChange) (*storage.CustomRequest, error)

	GetConversations(ctx context.Context) ([]*storage.Conversation, error)
	GetUserConversations(ctx context.Context, userID string) ([]*storage.Conversation, error)
	GetConversation(ctx context.Context, id string) (*storage.Conversation, error)
	StartConversation(ctx context.Context, actorID, text string) (*storage.Conversation, error)
	AddMessage(ctx context.Context, actorID, conversationID, text string) (*storage.Conversation, error)
	UpdateConversation(ctx context.Context, actorID, id string, upd storage.ConversationUpdate) (*storage.Conversation, error)

	GetUsers(ctx context.Context) ([]*storage.User, error)
	GetAssistants(ctx context.Context) ([]*storage.User, error)
	UpdateProfile(ctx context.Context, actorID, id string, upd storage.ProfileUpdate) (*storage.User, error)
	CreateAssistant(ctx context.Context, actorID string, in storage.AssistantInput) (*storage.User, error)
	UpdateAssistantTasks(ctx context.Context, actorID, id string, tasks []permission.Capability) (*storage.User, error)
	ToggleAssistantStatus(ctx context.Context, actorID, id string, enabled bool) (*storage.User, error)
	SetAssistantAvailability(ctx context.Context, actorID, id string, status storage.AssistantStatus) (*storage.User, error)
	ResetPassword(ctx context.Context, actorID, id string) (string, error)
	DeleteUser(ctx context.Context, actorID, id string) error

	GetActivity(ctx context.Context, limit int) ([]storage.ActivityEvent, error)
	GetKPIs(ctx context.Context) (storage.KPIs, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*storage.User, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, permission.Role, error)
	SignUp(ctx context.Context, in storage.SignUpInput) (auth.Session, permission.Role, error)
	SignOut(sessionID string) error
	Refresh(ctx context.Context, sessionID string) (auth.Session, error)
}

type Server struct {
	storage      Storage
	auth         Authenticator
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager
}

func New(storage Storage, authenticator Authenticator, logger *zap.Logger) *Server {
	return &Server{
		storage:      storage,
		auth:         authenticator,
		logger:       logger,
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, logger.Named("audit")),
	}
}

// Run serves until ctx is cancelled, then shuts the listener and the audit
// workers down.
func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http server shutdown completed")

	s.AuditManager.Shutdown(ctx)
	s.logger.Info("server shutdown completed successfully")
	return nil
}

type authMode int

const (
	public authMode = iota
	optional
	required
)

// Handler builds the routed API. Route names double as handler names in the
// audit trail.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.auditLogMiddleware)

	route := func(method, path, name string, mode authMode, h http.HandlerFunc) {
		var handler http.Handler = h
		switch mode {
		case required:
			handler = s.basicAuthMiddleware(handler, true)
		case optional:
			handler = s.basicAuthMiddleware(handler, false)
		}
		r.Handle(path, handler).Methods(method).Name(name)
	}

	route(http.MethodPost, "/auth/signin", "signIn", public, s.handleSignIn)
	route(http.MethodPost, "/auth/signup", "signUp", public, s.handleSignUp)
	route(http.MethodPost, "/auth/signout", "signOut", required, s.handleSignOut)
	route(http.MethodGet, "/me", "getMe", required, s.handleGetMe)
	route(http.MethodGet, "/me/capabilities", "getCapabilities", required, s.handleGetCapabilities)

	route(http.MethodGet, "/products", "listProducts", public, s.handleListProducts)
	route(http.MethodGet, "/products/{id}", "getProduct", public, s.handleGetProduct)
	route(http.MethodPost, "/products", "createProduct", required, s.handleCreateProduct)
	route(http.MethodPatch, "/products/{id}", "updateProduct", required, s.handleUpdateProduct)
	route(http.MethodDelete, "/products/{id}", "deleteProduct", required, s.handleDeleteProduct)

	route(http.MethodGet, "/banners", "listBanners", optional, s.handleListBanners)
	route(http.MethodPost, "/banners", "createBanner", required, s.handleCreateBanner)
	route(http.MethodPatch, "/banners/{id}", "updateBanner", required, s.handleUpdateBanner)
	route(http.MethodDelete, "/banners/{id}", "deleteBanner", required, s.handleDeleteBanner)

	route(http.MethodGet, "/orders", "listOrders", required, s.handleListOrders)
	route(http.MethodGet, "/orders/{id}", "getOrder", required, s.handleGetOrder)
	route(http.MethodPost, "/orders", "placeOrder", required, s.handlePlaceOrder)
	route(http.MethodPut, "/orders/{id}/status", "updateOrderStatus", required, s.handleUpdateOrderStatus)

	route(http.MethodGet, "/requests", "listRequests", required, s.handleListRequests)
	route(http.MethodGet, "/requests/{id}", "getRequest", required, s.handleGetRequest)
	route(http.MethodPost, "/requests", "createRequest", required, s.handleCreateRequest)
	route(http.MethodPut, "/requests/{id}/status", "updateRequestStatus", required, s.handleUpdateRequestStatus)

	route(http.MethodGet, "/conversations", "listConversations", required, s.handleListConversations)
	route(http.MethodGet, "/conversations/{id}", "getConversation", required, s.handleGetConversation)
	route(http.MethodPost, "/conversations", "startConversation", required, s.handleStartConversation)
	route(http.MethodPost, "/conversations/{id}/messages", "addMessage", required, s.handleAddMessage)
	route(http.MethodPatch, "/conversations/{id}", "updateConversation", required, s.handleUpdateConversation)

	route(http.MethodGet, "/users", "listUsers", required, s.handleListUsers)
	route(http.MethodPatch, "/users/{id}", "updateProfile", required, s.handleUpdateProfile)
	route(http.MethodPost, "/users/{id}/password-reset", "resetPassword", required, s.handleResetPassword)
	route(http.MethodDelete, "/users/{id}", "deleteUser", required, s.handleDeleteUser)
	route(http.MethodGet, "/assistants", "listAssistants", required, s.handleListAssistants)
	route(http.MethodPost, "/assistants", "createAssistant", required, s.handleCreateAssistant)
	route(http.MethodPut, "/assistants/{id}/enabled", "toggleAssistant", required, s.handleToggleAssistant)
	route(http.MethodPut, "/assistants/{id}/tasks", "updateAssistantTasks", required, s.handleUpdateAssistantTasks)
	route(http.MethodPut, "/assistants/{id}/availability", "setAssistantAvailability", required, s.handleSetAvailability)

	route(http.MethodGet, "/activity", "listActivity", required, s.handleListActivity)
	route(http.MethodGet, "/kpis", "getKPIs", required, s.handleGetKPIs)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
