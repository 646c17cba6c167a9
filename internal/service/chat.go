package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	WelcomeText = "Hey, I'm ChopChop, your Kitchen Assistant! I can help you with cooking questions, " +
		"recipe suggestions, and analyze food images. What would you like to cook today?"
	ChatErrorText        = "Sorry, I encountered an error. Please try again."
	FridgeErrorText      = "Sorry, I encountered an error analyzing your fridge photo. Please try again."
	FridgeUploadText     = "📸 Uploaded fridge photo - analyzing ingredients and generating recipes..."
	RecipeParseErrorText = "Generated recipes but had trouble parsing them:\n\n"
)

// ChatState is the request state of a session
type ChatState string

const (
	StateIdle    ChatState = "idle"
	StateSending ChatState = "sending"
)

// SendResult describes the turns produced by one request
type SendResult struct {
	UserMessage      *models.Message `json:"user_message,omitempty"`
	AssistantMessage *models.Message `json:"assistant_message,omitempty"`
	Merge            *MergeResult    `json:"merge,omitempty"`
	Failed           bool            `json:"failed"`
}

// RecipeRequest holds the options of a recipe generation
type RecipeRequest struct {
	Difficulty     string `json:"difficulty" validate:"required,oneof=Easy Medium Hard easy medium hard"`
	TimeConstraint string `json:"time_constraint" validate:"required,max=64"`
	Notes          string `json:"notes" validate:"max=500"`
}

// HydrateResult reports what was restored from storage
type HydrateResult struct {
	Collections bool `json:"collections"`
	Messages    int  `json:"messages"`
}

// ChatSession holds the ordered turns of one user and sends their requests.
// Only one request may be in flight at a time.
type ChatSession struct {
	mu       sync.Mutex
	email    string
	messages []models.Message
	state    ChatState

	kitchen *Kitchen
	backend Backend
	history HistoryStore
	archive PhotoArchive
	photos  *PhotoProcessor
	logger  *zap.Logger

	now func() time.Time
}

// ChatSessionDeps are the collaborators of a ChatSession. History and Archive
// are optional.
type ChatSessionDeps struct {
	Kitchen *Kitchen
	Backend Backend
	History HistoryStore
	Archive PhotoArchive
	Photos  *PhotoProcessor
	Logger  *zap.Logger
}

// NewChatSession creates a session for email holding only the welcome message
func NewChatSession(email string, deps ChatSessionDeps) *ChatSession {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ChatSession{
		email:   email,
		state:   StateIdle,
		kitchen: deps.Kitchen,
		backend: deps.Backend,
		history: deps.History,
		archive: deps.Archive,
		photos:  deps.Photos,
		logger:  logger.With(zap.String("email", email)),
		now:     time.Now,
	}
	s.messages = []models.Message{s.welcome()}
	return s
}

func (s *ChatSession) welcome() models.Message {
	return models.Message{
		ID:        "welcome",
		Text:      WelcomeText,
		Sender:    models.SenderAssistant,
		Kind:      models.KindPlain,
		Timestamp: s.now(),
	}
}

func newMessageID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Messages returns a copy of the turns
func (s *ChatSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.messages...)
}

// State returns the request state
func (s *ChatSession) State() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSession) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSending {
		return ErrRequestInFlight
	}
	s.state = StateSending
	return nil
}

func (s *ChatSession) end() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// append adds msg to the conversation and records stored in the history
func (s *ChatSession) append(ctx context.Context, msg, stored models.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, s.email, stored); err != nil {
		s.logger.Warn("failed to record chat turn", zap.Error(err), zap.String("message_id", msg.ID))
	}
}

func (s *ChatSession) userMessage(text string, image *EncodedImage) models.Message {
	msg := models.Message{
		ID:        newMessageID("user"),
		Text:      text,
		Sender:    models.SenderUser,
		Kind:      models.KindPlain,
		Timestamp: s.now(),
	}
	if image != nil {
		msg.HasImage = true
		msg.ImageURL = image.DataURL()
	}
	return msg
}

func (s *ChatSession) assistantMessage(text string) models.Message {
	return models.Message{
		ID:        newMessageID("assistant"),
		Text:      text,
		Sender:    models.SenderAssistant,
		Kind:      models.KindPlain,
		Timestamp: s.now(),
	}
}

// SendMessage appends the user turn, asks the backend and appends its answer.
// An attached image is held to the same limits as fridge photos. Structured
// answers are merged into the kitchen. Backend failures become an
// apology turn and are not returned as errors.
func (s *ChatSession) SendMessage(ctx context.Context, text string, image *EncodedImage) (*SendResult, error) {
	if strings.TrimSpace(text) == "" && image == nil {
		return nil, ErrEmptyMessage
	}
	if image != nil {
		if err := s.photos.Validate(image.Photo()); err != nil {
			return nil, err
		}
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	user := s.userMessage(text, image)
	s.append(ctx, user, user)

	req := ChatRequest{Message: text, Email: s.email}
	if image != nil {
		req.ImageBase64 = image.Base64()
		req.ImageFormat = image.Format()
	}
	return s.exchange(ctx, &user, req, ChatErrorText), nil
}

// UploadFridgePhoto validates the photo, then sends it with the fridge
// analysis prompt. A rejected photo produces no turns and no request.
func (s *ChatSession) UploadFridgePhoto(ctx context.Context, photo Photo) (*SendResult, error) {
	img, err := s.photos.Prepare(photo)
	if err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	user := s.userMessage(FridgeUploadText, &img)
	stored := user
	if s.archive != nil {
		if url, err := s.archive.Archive(ctx, s.email, img); err != nil {
			s.logger.Warn("failed to archive fridge photo", zap.Error(err))
		} else {
			stored.ImageURL = url
		}
	}
	s.append(ctx, user, stored)

	req := ChatRequest{
		Message:     FridgePhotoPrompt,
		Email:       s.email,
		ImageBase64: img.Base64(),
		ImageFormat: img.Format(),
	}
	return s.exchange(ctx, &user, req, FridgeErrorText), nil
}

func (s *ChatSession) exchange(ctx context.Context, user *models.Message, req ChatRequest, errorText string) *SendResult {
	result := &SendResult{UserMessage: user}

	reply, err := ParseReply(s.backend.Chat(ctx, req))
	if err != nil {
		s.logger.Error("chat request failed", zap.Error(err))
		msg := s.assistantMessage(errorText)
		s.append(ctx, msg, msg)
		result.AssistantMessage = &msg
		result.Failed = true
		return result
	}

	msg := s.assistantMessage(reply.Text)
	if reply.IsStructured() {
		msg.Kind = models.KindStructured
		msg.StructuredData = reply.Structured
		merge := s.kitchen.ApplyStructured(reply.Structured)
		result.Merge = &merge
		s.logger.Info("merged structured reply",
			zap.Int("pantry_added", merge.PantryAdded),
			zap.Int("recipes_added", merge.RecipesAdded),
			zap.Bool("grocery_replaced", merge.GroceryReplaced))
	}
	s.append(ctx, msg, msg)
	result.AssistantMessage = &msg
	return result
}

// GenerateRecipes asks for recipes built from the pantry. Recipes from a
// structured answer are merged; any other answer is shown as a chat turn and
// leaves the collections unchanged.
func (s *ChatSession) GenerateRecipes(ctx context.Context, req RecipeRequest) (*SendResult, error) {
	names := s.kitchen.PantryNames()
	if len(names) == 0 {
		return nil, &ValidationError{Field: "pantry", Message: "Add some ingredients to your pantry first"}
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	result := &SendResult{}
	reply, err := ParseReply(s.backend.Chat(ctx, ChatRequest{
		Message: BuildRecipePrompt(names, req),
		Email:   s.email,
	}))
	if err != nil {
		s.logger.Error("recipe generation failed", zap.Error(err))
		result.Failed = true
		return result, nil
	}

	if reply.IsStructured() && reply.Structured.Recipes != nil {
		added := s.kitchen.AddRecipes(reply.Structured.Recipes)
		result.Merge = &MergeResult{RecipesAdded: added}
		return result, nil
	}

	msg := s.assistantMessage(RecipeParseErrorText + reply.Text)
	s.append(ctx, msg, msg)
	result.AssistantMessage = &msg
	return result, nil
}

// BuildRecipePrompt builds the recipe generation prompt
func BuildRecipePrompt(pantry []string, req RecipeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on these available ingredients: %s\n\n", strings.Join(pantry, ", "))
	b.WriteString("Please generate 3 recipes that:\n")
	fmt.Fprintf(&b, "- Are %s difficulty\n", strings.ToLower(req.Difficulty))
	fmt.Fprintf(&b, "- Can be prepared in %s\n", req.TimeConstraint)
	b.WriteString("- Use primarily the available ingredients\n")
	b.WriteString("- Include clear cooking instructions")
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		fmt.Fprintf(&b, "\n- Additional requirements: %s", notes)
	}
	fmt.Fprintf(&b, `

Return the response as a JSON object with this structure:
{
  "type": "structured",
  "data": {
    "recipes": [
      {
        "name": "Recipe Name",
        "description": "Brief description",
        "cooking_time": %q,
        "difficulty": %q,
        "servings": "X servings",
        "ingredients_needed": [
          {
            "name": "ingredient name",
            "amount": "amount needed",
            "available": true/false
          }
        ],
        "instructions": ["step 1", "step 2", "step 3"],
        "tips": "Helpful cooking tip"
      }
    ]
  }
}`, req.TimeConstraint, req.Difficulty)
	return b.String()
}

// Hydrate loads the saved collections and the chat history concurrently.
// Stored history replaces the welcome message when it is not empty. Failures
// are logged and returned joined; whatever loaded is still applied. A failed
// collections load wraps ErrCollectionsUnavailable.
func (s *ChatSession) Hydrate(ctx context.Context) (*HydrateResult, error) {
	var (
		snapshot   *models.Snapshot
		history    []models.Message
		dataErr    error
		historyErr error
		result     HydrateResult
		g          errgroup.Group
	)

	g.Go(func() error {
		resp := s.backend.GetData(ctx, s.email)
		if !resp.OK() {
			dataErr = fmt.Errorf("%w: %w", ErrCollectionsUnavailable,
				&BackendError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage()})
			return nil
		}
		var body GetDataResponse
		if err := resp.Decode(&body); err != nil {
			dataErr = fmt.Errorf("%w: failed to decode saved data: %w", ErrCollectionsUnavailable, err)
			return nil
		}
		if body.Success {
			snap := body.Snapshot()
			snapshot = &snap
		}
		return nil
	})

	if s.history != nil {
		g.Go(func() error {
			history, historyErr = s.history.Load(ctx, s.email)
			return nil
		})
	}
	_ = g.Wait()

	if snapshot != nil {
		s.kitchen.Hydrate(*snapshot)
		result.Collections = true
	}
	if len(history) > 0 {
		s.mu.Lock()
		s.messages = history
		s.mu.Unlock()
		result.Messages = len(history)
	}

	if dataErr != nil {
		s.logger.Warn("failed to load saved collections", zap.Error(dataErr))
	}
	if historyErr != nil {
		s.logger.Warn("failed to load chat history", zap.Error(historyErr))
	}
	return &result, errors.Join(dataErr, historyErr)
}

// ClearHistory deletes the stored turns of the user and returns the
// conversation to the welcome message. The kitchen is left untouched.
func (s *ChatSession) ClearHistory(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if s.history != nil {
		if err := s.history.Clear(ctx, s.email); err != nil {
			return fmt.Errorf("failed to clear chat history: %w", err)
		}
	}
	s.Reset()
	return nil
}

// Reset returns the conversation to the welcome message
func (s *ChatSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []models.Message{s.welcome()}
}
