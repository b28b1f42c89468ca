// Package agent runs the conversational tool loop: build the message,
// pick tools and model, let the model call tools until it settles on an
// answer, then persist history and usage.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nyhage/bodil/internal/catalog"
	"github.com/nyhage/bodil/internal/config"
	"github.com/nyhage/bodil/internal/convo"
	"github.com/nyhage/bodil/internal/dispatch"
	"github.com/nyhage/bodil/internal/llm"
	"github.com/nyhage/bodil/internal/router"
	"github.com/nyhage/bodil/internal/usage"
)

// HistoryStore persists per-chat conversation history. *convo.Store
// implements it; tests use in-memory fakes.
type HistoryStore interface {
	History(ctx context.Context, chatID string) ([]llm.Message, error)
	Append(ctx context.Context, chatID string, messages ...llm.Message) error
	Replace(ctx context.Context, chatID string, messages []llm.Message) error
}

// UsageRecorder persists per-turn token usage. *usage.Store implements it.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// DisplayImage is an image a tool wants shown to the user alongside the
// text answer. Tools smuggle these out via the "_display_images" key,
// which is stripped from the result before the model sees it.
type DisplayImage struct {
	Path      string
	MediaType string
	Caption   string
}

// Response is the outcome of one inbound message.
type Response struct {
	Text          string
	DisplayImages []DisplayImage
}

// Options configures an Agent. Client, Dispatcher, and Router are
// required; History, Usage, and Compactor may be nil, which disables
// persistence, cost tracking, and compaction respectively.
type Options struct {
	Client     llm.Client
	Dispatcher *dispatch.Dispatcher
	Router     *router.Router
	History    HistoryStore
	Usage      UsageRecorder
	Compactor  *Compactor
	Pricing    config.PricingConfig

	MaxTokens      int
	ThinkingBudget int
	MaxIterations  int

	Logger *slog.Logger
}

// Agent owns the tool-use loop for one bot instance. Safe for
// concurrent use across chats.
type Agent struct {
	client     llm.Client
	dispatcher *dispatch.Dispatcher
	router     *router.Router
	history    HistoryStore
	usage      UsageRecorder
	compactor  *Compactor
	pricing    config.PricingConfig

	maxTokens      int
	thinkingBudget int
	maxIterations  int

	logger *slog.Logger
}

// New creates an agent from options, applying defaults for unset limits.
func New(opts Options) *Agent {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 30
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		client:         opts.Client,
		dispatcher:     opts.Dispatcher,
		router:         opts.Router,
		history:        opts.History,
		usage:          opts.Usage,
		compactor:      opts.Compactor,
		pricing:        opts.Pricing,
		maxTokens:      opts.MaxTokens,
		thinkingBudget: opts.ThinkingBudget,
		maxIterations:  opts.MaxIterations,
		logger:         opts.Logger,
	}
}

// HandleMessage runs one full turn: load history, compact if oversized,
// detect tool categories, route the model, loop through tool calls, and
// persist the outcome. The model and the active tool set are decided
// once per inbound message; request_tools can widen the tool set
// mid-loop but never changes the model.
func (a *Agent) HandleMessage(ctx context.Context, chatID, text string, imagePaths []string) (*Response, error) {
	history, err := a.loadHistory(ctx, chatID)
	if err != nil {
		return nil, err
	}

	userMsg, err := buildUserMessage(text, imagePaths)
	if err != nil {
		return nil, err
	}

	messages := append(slices.Clone(history), userMsg)
	baseLen := len(history)

	active := catalog.Detect(messages, catalog.NewCategorySet())
	tools := catalog.BuildTools(active)
	model := a.router.Select(router.Request{
		Categories:     active,
		HasImages:      userMsg.HasImages(),
		ThinkingBudget: a.thinkingBudget,
	})

	// Usage is recorded under the model name the API reports, which can
	// differ from the config alias we requested.
	var total llm.Usage
	toolCalls := 0
	recordModel := model
	defer func() {
		a.recordUsage(ctx, chatID, recordModel, total, toolCalls)
	}()

	var finalText string
	var displayImages []DisplayImage

	for iteration := 0; ; iteration++ {
		if iteration >= a.maxIterations {
			a.logger.Warn("tool loop hit iteration cap", "chat_id", chatID, "iterations", iteration)
			messages = trimOpenToolExchange(messages, baseLen)
			break
		}

		resp, err := a.client.CreateMessage(ctx, llm.Request{
			Model:          model,
			System:         systemPrompt,
			Messages:       messages,
			Tools:          tools,
			MaxTokens:      a.maxTokens,
			ThinkingBudget: a.thinkingBudget,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		total.Add(resp.Usage)
		if resp.Model != "" {
			recordModel = resp.Model
		}

		assistant := llm.Message{Role: "assistant", Content: resp.Content}
		messages = append(messages, assistant)

		if resp.StopReason != llm.StopToolUse {
			finalText = assistant.TextContent()
			break
		}

		uses := assistant.ToolUses()
		if len(uses) == 0 {
			finalText = assistant.TextContent()
			break
		}
		toolCalls += len(uses)

		results := make([]llm.Block, len(uses))
		var pending []int
		for i, use := range uses {
			if use.Name == catalog.RequestToolsName {
				var widened bool
				results[i], widened = a.handleRequestTools(use, active)
				if widened {
					tools = catalog.BuildTools(active)
				}
				continue
			}
			pending = append(pending, i)
		}

		dispatched := make([]llm.Block, 0, len(pending))
		for _, i := range pending {
			dispatched = append(dispatched, uses[i])
		}
		outcomes := a.executeAll(ctx, dispatched)
		for j, i := range pending {
			results[i] = outcomes[j].result
			displayImages = append(displayImages, outcomes[j].images...)
		}

		messages = append(messages, llm.Message{Role: "user", Content: results})
	}

	a.persist(ctx, chatID, messages[baseLen:])

	return &Response{Text: finalText, DisplayImages: displayImages}, nil
}

// loadHistory fetches the chat's recent window and compacts it when it
// has grown past the threshold, writing the compacted form back.
func (a *Agent) loadHistory(ctx context.Context, chatID string) ([]llm.Message, error) {
	if a.history == nil {
		return nil, nil
	}
	history, err := a.history.History(ctx, chatID)
	if err != nil {
		// A broken history DB should not block the conversation.
		a.logger.Warn("load history failed, starting fresh", "chat_id", chatID, "error", err)
		return nil, nil
	}

	if a.compactor != nil {
		compacted, changed := a.compactor.Compact(ctx, history)
		if changed {
			if err := a.history.Replace(ctx, chatID, compacted); err != nil {
				a.logger.Warn("persist compacted history failed", "chat_id", chatID, "error", err)
			}
			history = compacted
		}
	}
	return history, nil
}

// buildUserMessage assembles the inbound turn. Images are encoded from
// disk and their paths recorded in a trailing marker so history
// persistence can drop the base64 payload and re-encode on load.
func buildUserMessage(text string, imagePaths []string) (llm.Message, error) {
	if len(imagePaths) == 0 {
		return llm.TextMessage("user", text), nil
	}

	content := make([]llm.Block, 0, len(imagePaths)+1)
	for _, path := range imagePaths {
		block, err := convo.EncodeImageFile(path)
		if err != nil {
			return llm.Message{}, fmt.Errorf("encode image %s: %w", path, err)
		}
		content = append(content, block)
	}

	if text == "" {
		text = imagesOnlyPrompt
	}
	text += "\n\n" + convo.ImagePathsMarker + strings.Join(imagePaths, ", ") + "]"
	content = append(content, llm.TextBlock(text))

	return llm.Message{Role: "user", Content: content}, nil
}

// handleRequestTools activates the requested categories and reports
// which tools that exposed. Non-string and unknown category names are
// silently dropped. The active set is mutated in place.
func (a *Agent) handleRequestTools(use llm.Block, active catalog.CategorySet) (llm.Block, bool) {
	before := make(map[string]bool)
	for _, name := range catalog.ToolNames(active) {
		before[name] = true
	}

	widened := false
	if raw, ok := use.Input["categories"].([]any); ok {
		for _, item := range raw {
			name, ok := item.(string)
			if !ok || !catalog.KnownCategory(name) || active[name] {
				continue
			}
			active[name] = true
			widened = true
		}
	}

	newTools := []string{}
	for _, name := range catalog.ToolNames(active) {
		if !before[name] {
			newTools = append(newTools, name)
		}
	}

	a.logger.Info("tool categories requested",
		"categories", active.Sorted(),
		"new_tools", len(newTools),
	)

	payload, err := json.Marshal(map[string]any{
		"status":               "ok",
		"activated_categories": active.Sorted(),
		"new_tools":            newTools,
	})
	if err != nil {
		return llm.ToolResultBlock(use.ID, `{"status":"ok"}`, false), widened
	}
	return llm.ToolResultBlock(use.ID, string(payload), false), widened
}

// trimOpenToolExchange unwinds trailing tool_use/tool_result pairs down
// to base. A turn that ends mid-exchange (iteration cap) must not
// persist a history whose tail is a tool result: the next inbound user
// message would follow it directly on the wire.
func trimOpenToolExchange(messages []llm.Message, base int) []llm.Message {
	for len(messages) > base {
		last := messages[len(messages)-1]
		if last.IsToolResultOnly() || (last.Role == "assistant" && len(last.ToolUses()) > 0) {
			messages = messages[:len(messages)-1]
			continue
		}
		break
	}
	return messages
}

// persist appends this turn's new messages. Failure is logged, not
// returned: the user already has their answer.
func (a *Agent) persist(ctx context.Context, chatID string, newMessages []llm.Message) {
	if a.history == nil || len(newMessages) == 0 {
		return
	}
	if err := a.history.Append(ctx, chatID, newMessages...); err != nil {
		a.logger.Warn("persist history failed", "chat_id", chatID, "error", err)
	}
}

// recordUsage writes the turn's accumulated usage. Failure is logged,
// never surfaced.
func (a *Agent) recordUsage(ctx context.Context, chatID, model string, total llm.Usage, toolCalls int) {
	if a.usage == nil || total == (llm.Usage{}) {
		return
	}
	rec := usage.Record{
		ChatID:              chatID,
		Model:               model,
		InputTokens:         total.InputTokens,
		OutputTokens:        total.OutputTokens,
		CacheCreationTokens: total.CacheCreationTokens,
		CacheReadTokens:     total.CacheReadTokens,
		ToolCalls:           toolCalls,
		CostSEK:             usage.EstimateCostSEK(model, total, a.pricing),
	}
	if err := a.usage.Record(ctx, rec); err != nil {
		a.logger.Warn("record usage failed", "chat_id", chatID, "error", err)
	}
}
