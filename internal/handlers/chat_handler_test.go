package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/services"
)

type stubClientController struct {
	openResult    string
	openErr       error
	sendErr       error
	listResult    []services.ChatSummary
	listErr       error
	messages      []models.Message
	messagesErr   error
	lastDietitian string
	lastFirstText string
	lastChatID    string
	lastText      string
}

func (s *stubClientController) OpenOrCreateChat(_ context.Context, dietitianID, firstMessageText string) (string, error) {
	s.lastDietitian = dietitianID
	s.lastFirstText = firstMessageText
	return s.openResult, s.openErr
}

func (s *stubClientController) SendMessage(_ context.Context, chatID, text string) error {
	s.lastChatID = chatID
	s.lastText = text
	return s.sendErr
}

func (s *stubClientController) ListChats(_ context.Context) ([]services.ChatSummary, error) {
	return s.listResult, s.listErr
}

func (s *stubClientController) ListMessages(_ context.Context, chatID string) ([]models.Message, error) {
	s.lastChatID = chatID
	return s.messages, s.messagesErr
}

type stubDietitianController struct {
	openResult string
	openErr    error
	sendErr    error
	acceptErr  error
	closeErr   error
	suggestErr error
	inbox      []services.ChatSummary
	inboxErr   error
	messages   []models.Message
	plans      []models.Plan
	plansErr   error
	lastClient string
	lastChatID string
	lastText   string
	lastPlanID string
}

func (s *stubDietitianController) OpenOrCreateChat(_ context.Context, clientID string) (string, error) {
	s.lastClient = clientID
	return s.openResult, s.openErr
}

func (s *stubDietitianController) SendMessage(_ context.Context, chatID, text string) error {
	s.lastChatID = chatID
	s.lastText = text
	return s.sendErr
}

func (s *stubDietitianController) ListInbox(_ context.Context) ([]services.ChatSummary, error) {
	return s.inbox, s.inboxErr
}

func (s *stubDietitianController) ListMessages(_ context.Context, chatID string) ([]models.Message, error) {
	s.lastChatID = chatID
	return s.messages, nil
}

func (s *stubDietitianController) AcceptChat(_ context.Context, chatID string) error {
	s.lastChatID = chatID
	return s.acceptErr
}

func (s *stubDietitianController) CloseChat(_ context.Context, chatID string) error {
	s.lastChatID = chatID
	return s.closeErr
}

func (s *stubDietitianController) SuggestPlan(_ context.Context, chatID, planID string) error {
	s.lastChatID = chatID
	s.lastPlanID = planID
	return s.suggestErr
}

func (s *stubDietitianController) ListPlans(_ context.Context) ([]models.Plan, error) {
	return s.plans, s.plansErr
}

func newChatTestApp(handler *ChatHandler, userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	})
	chats := app.Group("/api/v1/chats")
	chats.Get("", handler.ListChats)
	chats.Post("", handler.CreateChat)
	chats.Post("/open", handler.OpenChat)
	chats.Get("/:id/messages", handler.GetMessages)
	chats.Post("/:id/messages", handler.SendMessage)
	chats.Post("/:id/accept", handler.AcceptChat)
	chats.Post("/:id/close", handler.CloseChat)
	chats.Post("/:id/suggest-plan", handler.SuggestPlan)
	app.Get("/api/v1/plans", handler.ListPlans)
	return app
}

func newStubHandler(client *stubClientController, dietitian *stubDietitianController) *ChatHandler {
	return &ChatHandler{
		clients:    func(string) ClientController { return client },
		dietitians: func(string) DietitianController { return dietitian },
	}
}

func TestCreateChatReturnsChatID(t *testing.T) {
	client := &stubClientController{openResult: "chat-1"}
	handler := newStubHandler(client, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", strings.NewReader(`{
		"dietitianId": "d1",
		"firstMessage": "I need help with meal planning"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if client.lastDietitian != "d1" {
		t.Fatalf("expected dietitian d1, got %q", client.lastDietitian)
	}
	if client.lastFirstText != "I need help with meal planning" {
		t.Fatalf("unexpected first message: %q", client.lastFirstText)
	}

	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ChatID != "chat-1" {
		t.Fatalf("expected chat-1, got %q", body.ChatID)
	}
}

func TestCreateChatRejectsDietitian(t *testing.T) {
	handler := newStubHandler(&stubClientController{}, &stubDietitianController{})
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", strings.NewReader(`{"dietitianId": "d1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCreateChatValidatesBody(t *testing.T) {
	handler := newStubHandler(&stubClientController{}, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", strings.NewReader(`{"firstMessage": "hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOpenChatForDietitian(t *testing.T) {
	dietitian := &stubDietitianController{openResult: "chat-9"}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/open", strings.NewReader(`{"clientId": "c1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if dietitian.lastClient != "c1" {
		t.Fatalf("expected client c1, got %q", dietitian.lastClient)
	}
}

func TestSendMessageRoutesByRole(t *testing.T) {
	client := &stubClientController{}
	dietitian := &stubDietitianController{}
	handler := newStubHandler(client, dietitian)
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", strings.NewReader(`{"text": "hello"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if client.lastChatID != "chat-1" || client.lastText != "hello" {
		t.Fatalf("unexpected send: %q %q", client.lastChatID, client.lastText)
	}
	if dietitian.lastChatID != "" {
		t.Fatal("dietitian controller must not be touched for a client request")
	}
}

func TestSendMessageMapsClosedChat(t *testing.T) {
	client := &stubClientController{sendErr: services.ErrChatClosed}
	handler := newStubHandler(client, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", strings.NewReader(`{"text": "hello"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAcceptChat(t *testing.T) {
	dietitian := &stubDietitianController{}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/accept", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if dietitian.lastChatID != "chat-1" {
		t.Fatalf("expected chat-1, got %q", dietitian.lastChatID)
	}
}

func TestAcceptChatRejectsClient(t *testing.T) {
	handler := newStubHandler(&stubClientController{}, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/accept", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCloseChatMapsForbidden(t *testing.T) {
	dietitian := &stubDietitianController{closeErr: services.ErrForbidden}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/close", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSuggestPlan(t *testing.T) {
	dietitian := &stubDietitianController{}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/suggest-plan", strings.NewReader(`{"planId": "p1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if dietitian.lastPlanID != "p1" {
		t.Fatalf("expected plan p1, got %q", dietitian.lastPlanID)
	}
}

func TestSuggestPlanMapsMissingPlan(t *testing.T) {
	dietitian := &stubDietitianController{suggestErr: services.ErrPlanNotFound}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/suggest-plan", strings.NewReader(`{"planId": "ghost"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListChatsUsesInboxForDietitian(t *testing.T) {
	dietitian := &stubDietitianController{
		inbox: []services.ChatSummary{{Chat: models.Chat{ID: "chat-1", Status: models.ChatStatusWaiting}}},
	}
	handler := newStubHandler(&stubClientController{}, dietitian)
	app := newChatTestApp(handler, "d1", models.RoleDietitian)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Chats []services.ChatSummary `json:"chats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Chats) != 1 || body.Chats[0].ID != "chat-1" {
		t.Fatalf("unexpected chats: %+v", body.Chats)
	}
}

func TestGetMessages(t *testing.T) {
	client := &stubClientController{
		messages: []models.Message{{ID: "m1", Text: "hello"}},
	}
	handler := newStubHandler(client, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if client.lastChatID != "chat-1" {
		t.Fatalf("expected chat-1, got %q", client.lastChatID)
	}

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].ID != "m1" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestListPlansRejectsClient(t *testing.T) {
	handler := newStubHandler(&stubClientController{}, &stubDietitianController{})
	app := newChatTestApp(handler, "c1", models.RoleClient)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
