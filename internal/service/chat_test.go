package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/pageza/chopchop/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "cook@example.com"

func newTestSession(t *testing.T, backend Backend, history HistoryStore) (*ChatSession, *Kitchen) {
	t.Helper()
	kitchen := NewKitchen()
	session := NewChatSession(testEmail, ChatSessionDeps{
		Kitchen: kitchen,
		Backend: backend,
		History: history,
		Photos:  NewPhotoProcessor(PhotoOptions{MaxBytes: 1024}),
	})
	return session, kitchen
}

func TestChatSession_StartsWithWelcome(t *testing.T) {
	_, client := newBackendStub(t)
	session, _ := newTestSession(t, client, nil)

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeText, msgs[0].Text)
	assert.Equal(t, models.SenderAssistant, msgs[0].Sender)
	assert.Equal(t, StateIdle, session.State())
}

func TestChatSession_SendPlainMessage(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply("Hi! What would you like to cook?"))
	session, kitchen := newTestSession(t, client, nil)

	result, err := session.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)

	msgs := session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.SenderUser, msgs[1].Sender)
	assert.Equal(t, "hello", msgs[1].Text)
	assert.Equal(t, models.SenderAssistant, msgs[2].Sender)
	assert.Equal(t, "Hi! What would you like to cook?", msgs[2].Text)
	assert.Equal(t, models.KindPlain, msgs[2].Kind)
	assert.Equal(t, StateIdle, session.State())
	assert.Equal(t, TabChat, kitchen.Tab())

	assert.JSONEq(t, `{"message":"hello","email":"cook@example.com"}`, string(stub.last(OpChat)))
}

func TestChatSession_StructuredReplyScenario(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply(map[string]any{
		"type": "structured",
		"data": map[string]any{
			"ingredients": []map[string]any{{"name": "Milk"}},
			"recipes":     []map[string]any{{"name": "Pancakes", "servings": 4}},
		},
	}))
	session, kitchen := newTestSession(t, client, nil)

	result, err := session.SendMessage(context.Background(), "what can I make?", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Merge)
	assert.Equal(t, 1, result.Merge.PantryAdded)

	snap := kitchen.Snapshot()
	require.Len(t, snap.Pantry, 1)
	assert.Equal(t, "Milk", snap.Pantry[0].Name)
	assert.Equal(t, DefaultQuantity, snap.Pantry[0].Quantity)
	assert.Equal(t, DefaultPantryCategory, snap.Pantry[0].Category)
	assert.Equal(t, models.FreshnessGood, snap.Pantry[0].Freshness)
	require.Len(t, snap.Recipes, 1)
	assert.Equal(t, "Pancakes", snap.Recipes[0].Name)
	assert.Equal(t, TabPantry, kitchen.Tab())

	last := session.Messages()[2]
	assert.Equal(t, models.KindStructured, last.Kind)
	require.NotNil(t, last.StructuredData)

	// a second reply naming the same ingredient in another case adds nothing
	stub.on(OpChat, chatReply(`{"type":"structured","data":{"ingredients":[{"name":"milk"}]}}`))
	_, err = session.SendMessage(context.Background(), "again", nil)
	require.NoError(t, err)
	assert.Len(t, kitchen.Snapshot().Pantry, 1)
}

func TestChatSession_MalformedStructuredIsText(t *testing.T) {
	stub, client := newBackendStub(t)
	raw := `{"type":"structured","data":{"ingredients":[{"name":"Milk"}]`
	stub.on(OpChat, chatReply(raw))
	session, kitchen := newTestSession(t, client, nil)

	_, err := session.SendMessage(context.Background(), "scan", nil)
	require.NoError(t, err)

	last := session.Messages()[2]
	assert.Equal(t, raw, last.Text)
	assert.Equal(t, models.KindPlain, last.Kind)
	assert.Empty(t, kitchen.Snapshot().Pantry)
}

func TestChatSession_BackendFailureAppendsApology(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, jsonReply(http.StatusInternalServerError, `{"error":"boom"}`))
	session, _ := newTestSession(t, client, nil)

	result, err := session.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.True(t, result.Failed)

	msgs := session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[1].Text)
	assert.Equal(t, ChatErrorText, msgs[2].Text)
	assert.Equal(t, StateIdle, session.State())
}

func TestChatSession_EmptyMessage(t *testing.T) {
	stub, client := newBackendStub(t)
	session, _ := newTestSession(t, client, nil)

	_, err := session.SendMessage(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, session.Messages(), 1)
	assert.Equal(t, 0, stub.count(OpChat))
}

func TestChatSession_SendWithImage(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply("That looks like lasagna."))
	session, _ := newTestSession(t, client, nil)

	img := &EncodedImage{ContentType: "image/png", Data: []byte("png-bytes")}
	_, err := session.SendMessage(context.Background(), "what is this?", img)
	require.NoError(t, err)

	user := session.Messages()[1]
	assert.True(t, user.HasImage)
	assert.Equal(t, img.DataURL(), user.ImageURL)

	var sent ChatRequest
	require.NoError(t, json.Unmarshal(stub.last(OpChat), &sent))
	assert.Equal(t, img.Base64(), sent.ImageBase64)
	assert.Equal(t, "png", sent.ImageFormat)
}

func TestChatSession_SendRejectsBadAttachment(t *testing.T) {
	tests := []struct {
		name    string
		image   *EncodedImage
		message string
	}{
		{"too large", &EncodedImage{ContentType: "image/png", Data: make([]byte, 2048)}, "Image too large"},
		{"svg", &EncodedImage{ContentType: "image/svg+xml", Data: make([]byte, 100)}, "Unsupported image format"},
		{"oversized svg", &EncodedImage{ContentType: "image/svg+xml", Data: make([]byte, 10_000)}, "Image too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, client := newBackendStub(t)
			session, _ := newTestSession(t, client, nil)

			_, err := session.SendMessage(context.Background(), "look", tt.image)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Message, tt.message)
			assert.Equal(t, 0, stub.count(OpChat))
			assert.Len(t, session.Messages(), 1, "no turn is appended")
			assert.Equal(t, StateIdle, session.State())
		})
	}
}

func TestChatSession_RejectsConcurrentSend(t *testing.T) {
	stub, client := newBackendStub(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	stub.on(OpChat, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		chatReply("done")(w, r)
	})
	session, _ := newTestSession(t, client, nil)

	done := make(chan error, 1)
	go func() {
		_, err := session.SendMessage(context.Background(), "first", nil)
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the backend")
	}
	assert.Equal(t, StateSending, session.State())

	_, err := session.SendMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, session.State())
	assert.Len(t, session.Messages(), 3)
}

func TestChatSession_UploadFridgePhoto(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply(`{"type":"structured","data":{"ingredients":[{"name":"Eggs","quantity":6}],"recipes":[{"name":"Omelette"}]}}`))
	session, kitchen := newTestSession(t, client, nil)

	result, err := session.UploadFridgePhoto(context.Background(), Photo{
		ContentType: "image/jpeg",
		Size:        4,
		Data:        []byte{0xff, 0xd8, 0xff, 0xd9},
	})
	require.NoError(t, err)
	assert.False(t, result.Failed)

	msgs := session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, FridgeUploadText, msgs[1].Text)
	assert.True(t, msgs[1].HasImage)

	var sent ChatRequest
	require.NoError(t, json.Unmarshal(stub.last(OpChat), &sent))
	assert.Equal(t, FridgePhotoPrompt, sent.Message)
	assert.Equal(t, "jpeg", sent.ImageFormat)

	snap := kitchen.Snapshot()
	require.Len(t, snap.Pantry, 1)
	assert.Equal(t, "6", snap.Pantry[0].Quantity)
	assert.Equal(t, TabPantry, kitchen.Tab())
}

func TestChatSession_UploadFridgePhotoRejectsOversize(t *testing.T) {
	stub, client := newBackendStub(t)
	session, _ := newTestSession(t, client, nil)

	_, err := session.UploadFridgePhoto(context.Background(), Photo{
		ContentType: "image/jpeg",
		Size:        5000,
		Data:        []byte{1, 2, 3},
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "Image too large")
	assert.Equal(t, 0, stub.count(OpChat))
	assert.Len(t, session.Messages(), 1)
}

func TestChatSession_UploadFridgePhotoFailure(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, jsonReply(http.StatusBadGateway, `{"error":"vision model down"}`))
	session, _ := newTestSession(t, client, nil)

	result, err := session.UploadFridgePhoto(context.Background(), Photo{ContentType: "image/png", Size: 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, FridgeErrorText, session.Messages()[2].Text)
}

type stubArchive struct {
	url string
	err error
}

func (a *stubArchive) Archive(context.Context, string, EncodedImage) (string, error) {
	return a.url, a.err
}

func TestChatSession_HistoryRecordsArchivedPhoto(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply("Looks fresh!"))
	history := &memoryHistory{}
	kitchen := NewKitchen()
	session := NewChatSession(testEmail, ChatSessionDeps{
		Kitchen: kitchen,
		Backend: client,
		History: history,
		Archive: &stubArchive{url: "https://photos.example.com/fridge-photos/1.jpeg"},
		Photos:  NewPhotoProcessor(PhotoOptions{MaxBytes: 1024}),
	})

	_, err := session.UploadFridgePhoto(context.Background(), Photo{ContentType: "image/jpeg", Size: 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	stored := history.all()
	require.Len(t, stored, 2)
	assert.Equal(t, "https://photos.example.com/fridge-photos/1.jpeg", stored[0].ImageURL)
	assert.Contains(t, session.Messages()[1].ImageURL, "data:image/jpeg;base64,")
	assert.Equal(t, "Looks fresh!", stored[1].Text)
}

func TestChatSession_GenerateRecipes(t *testing.T) {
	stub, client := newBackendStub(t)
	session, kitchen := newTestSession(t, client, nil)

	_, err := session.GenerateRecipes(context.Background(), RecipeRequest{Difficulty: "Easy", TimeConstraint: "30 minutes"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, stub.count(OpChat))

	_, err = kitchen.AddPantryItem(models.PantryItem{Name: "Rice"})
	require.NoError(t, err)
	_, err = kitchen.AddPantryItem(models.PantryItem{Name: "Beans"})
	require.NoError(t, err)

	stub.on(OpChat, chatReply(`{"type":"structured","data":{"recipes":[{"name":"Rice and Beans"},{"name":"Bean Chili"}]}}`))
	result, err := session.GenerateRecipes(context.Background(), RecipeRequest{Difficulty: "Easy", TimeConstraint: "30 minutes", Notes: "vegan"})
	require.NoError(t, err)
	require.NotNil(t, result.Merge)
	assert.Equal(t, 2, result.Merge.RecipesAdded)
	assert.Len(t, kitchen.Snapshot().Recipes, 2)

	var sent ChatRequest
	require.NoError(t, json.Unmarshal(stub.last(OpChat), &sent))
	assert.Contains(t, sent.Message, "Based on these available ingredients: Rice, Beans")
	assert.Contains(t, sent.Message, "- Are easy difficulty")
	assert.Contains(t, sent.Message, "- Additional requirements: vegan")

	stub.on(OpChat, chatReply("Here are some ideas: fried rice, bean soup"))
	result, err = session.GenerateRecipes(context.Background(), RecipeRequest{Difficulty: "Easy", TimeConstraint: "30 minutes"})
	require.NoError(t, err)
	assert.Nil(t, result.Merge)
	require.NotNil(t, result.AssistantMessage)
	assert.Contains(t, result.AssistantMessage.Text, "fried rice")
	assert.Len(t, kitchen.Snapshot().Recipes, 2)
}

func TestChatSession_Hydrate(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpGetData, jsonReply(http.StatusOK, `{"success":true,"data":{
		"items":[{"item":"Eggs","category":"dairy","needed_for":"Omelette","priority":"high","checked":false}],
		"pantry":[{"id":"p1","name":"Cheese","quantity":"1 block","category":"dairy","freshness":"fresh","detected_at":"2026-01-01T00:00:00Z"}],
		"recipes":[{"name":"Omelette"}]}}`))
	history := &memoryHistory{}
	require.NoError(t, history.Append(context.Background(), testEmail, models.Message{ID: "1", Text: "hi", Sender: models.SenderUser}))
	require.NoError(t, history.Append(context.Background(), testEmail, models.Message{ID: "2", Text: "hello!", Sender: models.SenderAssistant}))

	session, kitchen := newTestSession(t, client, history)
	changes := 0
	kitchen.OnChange(func() { changes++ })

	res, err := session.Hydrate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Collections)
	assert.Equal(t, 2, res.Messages)

	snap := kitchen.Snapshot()
	assert.Len(t, snap.Grocery, 1)
	assert.Len(t, snap.Pantry, 1)
	assert.Len(t, snap.Recipes, 1)
	assert.Equal(t, 0, changes)

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestChatSession_HydrateKeepsWelcomeWithoutHistory(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpGetData, jsonReply(http.StatusInternalServerError, `{"error":"Failed to retrieve data"}`))
	session, kitchen := newTestSession(t, client, &memoryHistory{})

	res, err := session.Hydrate(context.Background())
	assert.ErrorIs(t, err, ErrCollectionsUnavailable)
	assert.False(t, res.Collections)
	assert.Empty(t, kitchen.Snapshot().Pantry)
	require.Len(t, session.Messages(), 1)
	assert.Equal(t, WelcomeText, session.Messages()[0].Text)
}

func TestChatSession_ClearHistory(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply(`{"type":"structured","data":{"ingredients":[{"name":"Milk"}]}}`))
	history := &memoryHistory{}
	session, kitchen := newTestSession(t, client, history)

	_, err := session.SendMessage(context.Background(), "scan", nil)
	require.NoError(t, err)
	require.Len(t, history.all(), 2)

	require.NoError(t, session.ClearHistory(context.Background()))

	assert.Empty(t, history.all())
	require.Len(t, session.Messages(), 1)
	assert.Equal(t, WelcomeText, session.Messages()[0].Text)
	assert.Len(t, kitchen.Snapshot().Pantry, 1, "the kitchen is kept")
}

func TestChatSession_Reset(t *testing.T) {
	stub, client := newBackendStub(t)
	stub.on(OpChat, chatReply("hey"))
	session, _ := newTestSession(t, client, nil)

	_, err := session.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	session.Reset()

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeText, msgs[0].Text)
}

// memoryHistory is an in-process HistoryStore
type memoryHistory struct {
	mu       sync.Mutex
	messages []models.Message
}

func (m *memoryHistory) Append(_ context.Context, _ string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryHistory) Load(context.Context, string) ([]models.Message, error) {
	return m.all(), nil
}

func (m *memoryHistory) Clear(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	return nil
}

func (m *memoryHistory) all() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message{}, m.messages...)
}
