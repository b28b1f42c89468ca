package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nyhage/bodil/internal/llm"
)

// maxToolWorkers caps concurrent tool execution per assistant turn.
const maxToolWorkers = 4

// reflectionTools are judgment-heavy tools whose successful results get
// a self-critique instruction appended before going back to the model.
var reflectionTools = map[string]bool{
	"create_draft_listing": true,
	"price_check":          true,
	"create_sale_voucher":  true,
}

// toolOutcome pairs a tool_result block with any display images the
// tool produced.
type toolOutcome struct {
	result llm.Block
	images []DisplayImage
}

// executeAll runs the turn's tool calls and returns outcomes in call
// order. A single call runs synchronously; multiple calls run on a
// small worker pool. One failing tool never affects the others: the
// dispatcher reports failures in-band.
func (a *Agent) executeAll(ctx context.Context, uses []llm.Block) []toolOutcome {
	switch len(uses) {
	case 0:
		return nil
	case 1:
		return []toolOutcome{a.executeOne(ctx, uses[0])}
	}

	outcomes := make([]toolOutcome, len(uses))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := len(uses)
	if workers > maxToolWorkers {
		workers = maxToolWorkers
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = a.executeOne(ctx, uses[i])
			}
		}()
	}
	for i := range uses {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// executeOne dispatches a single tool call and packages the result. The
// "_display_images" key is lifted out of the result before it is
// serialized for the model.
func (a *Agent) executeOne(ctx context.Context, use llm.Block) toolOutcome {
	result := a.dispatcher.Execute(ctx, use.Name, use.Input)
	images := extractDisplayImages(result)
	_, failed := result["error"]

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "failed to serialize result: %v"}`, err))
		failed = true
	}

	content := string(payload)
	if !failed && reflectionTools[use.Name] {
		content += "\n\n" + reflectionPrompt
	}

	return toolOutcome{
		result: llm.ToolResultBlock(use.ID, content, failed),
		images: images,
	}
}

// extractDisplayImages pops "_display_images" from a tool result and
// decodes the entries it can understand.
func extractDisplayImages(result map[string]any) []DisplayImage {
	raw, ok := result["_display_images"]
	if !ok {
		return nil
	}
	delete(result, "_display_images")

	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	images := make([]DisplayImage, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		img := DisplayImage{}
		if p, ok := m["path"].(string); ok {
			img.Path = p
		}
		if mt, ok := m["media_type"].(string); ok {
			img.MediaType = mt
		}
		if c, ok := m["caption"].(string); ok {
			img.Caption = c
		}
		if img.Path != "" {
			images = append(images, img)
		}
	}
	return images
}
