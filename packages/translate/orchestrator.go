// Package translate drives the multi-language translation workflow: the
// pivot language is translated straight from the source, every other target
// is translated from the pivot's output, so quality drift stays bounded to
// one hop.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"harvester/packages/domain"
	"harvester/packages/jsonfix"
	"harvester/packages/metrics"

	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

// Completer is the slice of the LLM client the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const translateSystemPrompt = "You are a professional translator for consumer " +
	"product reviews. Translate the user's text to %s. Preserve HTML tags and " +
	"paragraph structure exactly. Respond with the translation only."

const metadataSystemPrompt = "You generate SEO metadata for a translated " +
	"product review in %s. Given the title and full content, respond with one " +
	"JSON object with the keys: title, meta_title, meta_description, slug, " +
	"summary, faq (array of {question, answer}), specs (object of string to " +
	"string), pros (array of strings), cons (array of strings). Respond with " +
	"JSON only."

const repairSystemPrompt = "The following output was supposed to be a single " +
	"syntactically valid JSON object but is not parseable. Return the same " +
	"data as syntactically valid JSON. Respond with JSON only."

type Orchestrator struct {
	client    Completer
	pivot     string
	chunkSize int
}

func New(client Completer, pivotLanguage string, chunkSize int) *Orchestrator {
	return &Orchestrator{client: client, pivot: pivotLanguage, chunkSize: chunkSize}
}

// Translate produces one payload per target language. It never returns a
// partial map: a language whose translation is abandoned gets a
// deterministic fallback payload so persistence always sees every language.
func (o *Orchestrator) Translate(ctx context.Context, draft domain.ReviewDraft, targets []string) map[string]domain.TranslationPayload {
	results := make(map[string]domain.TranslationPayload, len(targets))
	var mu sync.Mutex

	// The pivot must finish first: it is the input for everything else.
	pivotPayload, pivotErr := o.translateOne(ctx, o.pivot, draft.Title, draft.Content, draft)
	if pivotErr != nil {
		slog.Warn("Pivot translation abandoned", "url", draft.SourceURL, "language", o.pivot, "error", pivotErr)
		pivotPayload = o.fallbackPayload(o.pivot, draft)
	}
	results[o.pivot] = pivotPayload

	// Dependents translate from the pivot output; if the pivot fell back,
	// their input is the original source content rather than nothing.
	inputTitle, inputContent := pivotPayload.Title, pivotPayload.Content

	g, gCtx := errgroup.WithContext(ctx)
	for _, lang := range targets {
		if lang == o.pivot {
			continue
		}
		currentLang := lang
		g.Go(func() error {
			payload, err := o.translateOne(gCtx, currentLang, inputTitle, inputContent, draft)
			if err != nil {
				slog.Warn("Translation abandoned", "url", draft.SourceURL, "language", currentLang, "error", err)
				payload = o.fallbackPayload(currentLang, draft)
			}
			mu.Lock()
			results[currentLang] = payload
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// translateOne translates content (chunked if oversized) and then runs the
// metadata pass over the combined result, because SEO metadata has to
// reflect the whole item, not one chunk.
func (o *Orchestrator) translateOne(ctx context.Context, lang, title, content string, draft domain.ReviewDraft) (domain.TranslationPayload, error) {
	system := fmt.Sprintf(translateSystemPrompt, lang)

	chunks := SplitChunks(content, o.chunkSize)
	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := o.client.Complete(ctx, system, chunk)
		if err != nil {
			return domain.TranslationPayload{}, fmt.Errorf("translate chunk %d/%d: %w", i+1, len(chunks), err)
		}
		translated = append(translated, strings.TrimSpace(out))
	}
	combined := strings.Join(translated, "\n\n")

	payload, err := o.generateMetadata(ctx, lang, title, combined, draft)
	if err != nil {
		return domain.TranslationPayload{}, err
	}
	payload.Language = lang
	payload.Content = combined
	return payload, nil
}

func (o *Orchestrator) generateMetadata(ctx context.Context, lang, title, content string, draft domain.ReviewDraft) (domain.TranslationPayload, error) {
	prompt := fmt.Sprintf("Source title: %s\n\nPros: %s\nCons: %s\n\nContent:\n%s",
		title, strings.Join(draft.Pros, "; "), strings.Join(draft.Cons, "; "), content)

	raw, err := o.client.Complete(ctx, fmt.Sprintf(metadataSystemPrompt, lang), prompt)
	if err != nil {
		return domain.TranslationPayload{}, fmt.Errorf("metadata pass: %w", err)
	}

	var payload domain.TranslationPayload
	if err := jsonfix.Default.Unmarshal(raw, &payload); err == nil {
		o.finishPayload(&payload, lang, title)
		return payload, nil
	}

	// One repair round: hand the invalid output back and ask for valid JSON.
	repaired, err := o.client.Complete(ctx, repairSystemPrompt, raw)
	if err != nil {
		metrics.TranslationRepairs.WithLabelValues("fallback").Inc()
		return domain.TranslationPayload{}, fmt.Errorf("metadata repair call: %w", err)
	}
	if err := jsonfix.Default.Unmarshal(repaired, &payload); err != nil {
		metrics.TranslationRepairs.WithLabelValues("fallback").Inc()
		return domain.TranslationPayload{}, fmt.Errorf("metadata repair parse: %w", err)
	}

	metrics.TranslationRepairs.WithLabelValues("repaired").Inc()
	o.finishPayload(&payload, lang, title)
	return payload, nil
}

func (o *Orchestrator) finishPayload(payload *domain.TranslationPayload, lang, title string) {
	if payload.Title == "" {
		payload.Title = title
	}
	if payload.Slug == "" {
		payload.Slug = slug.MakeLang(payload.Title, lang)
	} else {
		payload.Slug = slug.MakeLang(payload.Slug, lang)
	}
}

// fallbackPayload substitutes the untranslated source so downstream
// persistence never sees a missing language.
func (o *Orchestrator) fallbackPayload(lang string, draft domain.ReviewDraft) domain.TranslationPayload {
	return domain.TranslationPayload{
		Language: lang,
		Title:    draft.Title,
		Content:  draft.Content,
		Slug:     slug.MakeLang(draft.Title, lang),
		Pros:     draft.Pros,
		Cons:     draft.Cons,
		Fallback: true,
	}
}
