package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
	"github.com/Septimus4/AgendaFlow/pkg/ai"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

const systemPromptEN = `You are an event concierge assistant for Paris, France. Your role is to help users find relevant events based on their queries.

Instructions:
- Answer in English, matching the user's language
- Only recommend events from the provided context
- Never invent or hallucinate event information
- If date constraints are specified, ensure all suggestions fall within that range
- If no relevant events are found, clearly state this and suggest the closest alternatives from the context
- Group 3-5 suggestions by theme or date when appropriate
- Always provide: title, date/time, venue, neighborhood/arrondissement (if available), price, and URL
- Avoid listing the same event multiple times; for recurring events, mention the next upcoming date
- Be concise and helpful`

const systemPromptFR = `Vous êtes un assistant concierge d'événements pour Paris, France. Votre rôle est d'aider les utilisateurs à trouver des événements pertinents selon leurs requêtes.

Instructions :
- Répondez en français, correspondant à la langue de l'utilisateur
- Recommandez uniquement les événements du contexte fourni
- N'inventez jamais d'informations sur les événements
- Si des contraintes de date sont spécifiées, assurez-vous que toutes les suggestions respectent cette plage
- Si aucun événement pertinent n'est trouvé, indiquez-le clairement et suggérez les alternatives les plus proches du contexte
- Groupez 3 à 5 suggestions par thème ou par date si approprié
- Fournissez toujours : titre, date/heure, lieu, quartier/arrondissement (si disponible), prix et URL
- Évitez de lister le même événement plusieurs fois ; pour les événements récurrents, mentionnez la prochaine date
- Soyez concis et utile`

const (
	noResultsEN = "I couldn't find any events matching your criteria. Please try broadening your search or adjusting the time period."
	noResultsFR = "Je n'ai pas trouvé d'événements correspondant à vos critères. Essayez d'élargir votre recherche ou d'ajuster la période."

	fallbackHeaderEN = "I encountered an error generating the response. Here are the events I found:\n\n"
	fallbackHeaderFR = "J'ai rencontré une erreur lors de la génération de la réponse. Voici les événements trouvés :\n\n"
)

const maxContextDescriptionChars = 300

// Generator turns retrieved documents into a natural-language answer. When
// the language model is unavailable it degrades to a templated event list so
// the caller still gets usable results.
type Generator struct {
	client      ai.Client
	model       string
	temperature float64
	location    *time.Location
}

// NewGenerator creates a Generator. A nil client means every call takes the
// degraded fallback path.
func NewGenerator(client ai.Client, model string) *Generator {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	return &Generator{
		client:      client,
		model:       model,
		temperature: 0.2,
		location:    loc,
	}
}

// Generate produces the answer text for the question over the retrieved
// documents. The second return value carries the generation failure when the
// degraded fallback was used; the answer itself is always usable.
func (g *Generator) Generate(ctx context.Context, question string, docs []event.Document, language string, c queryparse.Constraints) (string, error) {
	if len(docs) == 0 {
		return noResultsAnswer(language), nil
	}

	if g.client == nil {
		return fallbackAnswer(docs, language), fmt.Errorf("generate: no language model configured")
	}

	system := systemPromptFR
	if language == "en" {
		system = systemPromptEN
	}

	answer, err := g.client.GenerateCompletion(ctx,
		g.buildUserPrompt(question, docs, c),
		ai.WithModel(g.model),
		ai.WithSystemPrompts(system),
		ai.WithTemperature(g.temperature),
	)
	if err != nil {
		logger.Error("Answer generation failed, using fallback", "err", err)
		return fallbackAnswer(docs, language), err
	}
	return answer, nil
}

// formatContext renders the documents as numbered event blocks for the model.
func (g *Generator) formatContext(docs []event.Document) string {
	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		m := doc.Metadata

		var b strings.Builder
		fmt.Fprintf(&b, "Event %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", m.Title)
		fmt.Fprintf(&b, "Date: %s\n", g.formatDate(m.StartDatetime))
		fmt.Fprintf(&b, "Venue: %s, %s", m.VenueName, m.City)
		if m.Arrondissement != "" {
			fmt.Fprintf(&b, " (%s)", m.Arrondissement)
		}
		fmt.Fprintf(&b, "\nPrice: %s", priceLabel(m))
		if len(m.Categories) > 0 {
			cats := m.Categories
			if len(cats) > 3 {
				cats = cats[:3]
			}
			fmt.Fprintf(&b, "\nCategories: %s", strings.Join(cats, ", "))
		}
		if m.URL != "" {
			fmt.Fprintf(&b, "\nURL: %s", m.URL)
		}
		desc := doc.Text
		if len(desc) > maxContextDescriptionChars {
			desc = desc[:maxContextDescriptionChars] + "..."
		}
		fmt.Fprintf(&b, "\nDescription: %s", desc)

		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// formatDate renders the stored timestamp in Paris local time; unparseable
// values pass through untouched.
func (g *Generator) formatDate(stored string) string {
	t, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		return stored
	}
	return t.In(g.location).Format("Monday 02 January 2006, 15:04")
}

func (g *Generator) buildUserPrompt(question string, docs []event.Document, c queryparse.Constraints) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", question)

	var constraints []string
	if c.StartDate != nil {
		constraints = append(constraints, "- Start date: "+c.StartDate.Format(time.RFC3339))
	}
	if c.EndDate != nil {
		constraints = append(constraints, "- End date: "+c.EndDate.Format(time.RFC3339))
	}
	if c.Category != "" {
		constraints = append(constraints, "- Category: "+c.Category)
	}
	if c.Price != "" {
		constraints = append(constraints, "- Price: "+c.Price)
	}
	if c.Arrondissement != 0 {
		constraints = append(constraints, fmt.Sprintf("- Arrondissement: %d", c.Arrondissement))
	}
	if len(constraints) > 0 {
		b.WriteString("Constraints:\n")
		b.WriteString(strings.Join(constraints, "\n"))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Available events:\n%s\n\n", g.formatContext(docs))
	b.WriteString("Please provide a helpful response recommending relevant events from the context above.")
	return b.String()
}

func noResultsAnswer(language string) string {
	if language == "en" {
		return noResultsEN
	}
	return noResultsFR
}

// fallbackAnswer lists up to three events in plain text when generation is
// unavailable.
func fallbackAnswer(docs []event.Document, language string) string {
	var b strings.Builder
	if language == "en" {
		b.WriteString(fallbackHeaderEN)
	} else {
		b.WriteString(fallbackHeaderFR)
	}
	for i, doc := range docs {
		if i == 3 {
			break
		}
		m := doc.Metadata
		fmt.Fprintf(&b, "%d. %s - %s", i+1, m.Title, m.VenueName)
		if m.URL != "" {
			fmt.Fprintf(&b, "\n   %s", m.URL)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func priceLabel(m event.Metadata) string {
	if m.IsFree {
		return "Free"
	}
	if m.PriceBucket != "" {
		return m.PriceBucket
	}
	return "Price not specified"
}
