package agent

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/serrrfirat/iso-civ-sub000/internal/game"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/core"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// HTTPService talks to the agent backend over JSON/HTTP. Responses for the
// structured phases (diplomacy, planning) are validated against embedded
// JSON Schemas before use, so malformed agent output fails the turn cleanly
// instead of corrupting state.
type HTTPService struct {
	baseURL   string
	probePath string
	timeout   time.Duration
	client    *http.Client
	logger    zerolog.Logger

	diplomacySchema *jsonschema.Schema
	planSchema      *jsonschema.Schema
}

// NewHTTPService creates a client for the agent backend at baseURL. A zero
// timeout disables the per-call deadline.
func NewHTTPService(baseURL, probePath string, timeout time.Duration, logger zerolog.Logger) (*HTTPService, error) {
	s := &HTTPService{
		baseURL:   baseURL,
		probePath: probePath,
		timeout:   timeout,
		client:    &http.Client{},
		logger:    logger.With().Str("component", "agent_client").Logger(),
	}
	var err error
	if s.diplomacySchema, err = compileSchema("schemas/diplomacy.json"); err != nil {
		return nil, err
	}
	if s.planSchema, err = compileSchema("schemas/plan.json"); err != nil {
		return nil, err
	}
	return s, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", name, err)
	}
	schema, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return schema, nil
}

// Available probes the backend once; the server decides agent vs. local
// simulation from the result.
func (s *HTTPService) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+s.probePath, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", s.baseURL).Msg("Agent backend probe failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type wireMessage struct {
	To   string `json:"to"`
	Tone string `json:"tone,omitempty"`
	Text string `json:"text"`
}

type wireCoordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type wireAction struct {
	Kind   string          `json:"kind"`
	CityID string          `json:"cityId,omitempty"`
	UnitID string          `json:"unitId,omitempty"`
	Item   string          `json:"item,omitempty"`
	Name   string          `json:"name,omitempty"`
	To     *wireCoordinate `json:"to,omitempty"`
	Target *wireCoordinate `json:"target,omitempty"`
}

// Diplomacy implements Service.
func (s *HTTPService) Diplomacy(ctx context.Context, civID string, gs *game.GameState, inbox []game.DiplomacyMessage) ([]game.DiplomacyMessage, error) {
	reqBody := map[string]interface{}{
		"game_id": gs.ID,
		"civ_id":  civID,
		"turn":    gs.Turn,
		"inbox":   inbox,
		"state":   digest(gs),
	}
	raw, err := s.post(ctx, "/v1/diplomacy", reqBody, s.diplomacySchema)
	if err != nil {
		return nil, fmt.Errorf("diplomacy request for %s: %w", civID, err)
	}
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding diplomacy response for %s: %w", civID, err)
	}
	out := make([]game.DiplomacyMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, game.DiplomacyMessage{
			Turn:      gs.Turn,
			FromCivID: civID,
			ToCivID:   m.To,
			Tone:      m.Tone,
			Text:      m.Text,
		})
	}
	return out, nil
}

// Plan implements Service.
func (s *HTTPService) Plan(ctx context.Context, civID string, gs *game.GameState, diplomacyContext string) (*PlanDecision, error) {
	reqBody := map[string]interface{}{
		"game_id":           gs.ID,
		"civ_id":            civID,
		"turn":              gs.Turn,
		"diplomacy_context": diplomacyContext,
		"state":             digest(gs),
	}
	raw, err := s.post(ctx, "/v1/plan", reqBody, s.planSchema)
	if err != nil {
		return nil, fmt.Errorf("plan request for %s: %w", civID, err)
	}
	var resp struct {
		Actions          []wireAction       `json:"actions"`
		Artifacts        []ArtifactProposal `json:"artifacts"`
		ConstitutionName string             `json:"constitution_name"`
		ReligionName     string             `json:"religion_name"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding plan response for %s: %w", civID, err)
	}
	dec := &PlanDecision{
		Artifacts:        resp.Artifacts,
		ConstitutionName: resp.ConstitutionName,
		ReligionName:     resp.ReligionName,
	}
	for _, wa := range resp.Actions {
		act, err := decodeAction(civID, wa)
		if err != nil {
			// Schema guards the kind enum; anything slipping through is
			// dropped like any other inadmissible action.
			s.logger.Debug().Err(err).Str("civ", civID).Msg("Dropping undecodable action")
			continue
		}
		dec.Actions = append(dec.Actions, act)
	}
	return dec, nil
}

func decodeAction(civID string, wa wireAction) (game.Action, error) {
	switch game.ActionKind(wa.Kind) {
	case game.ActionBuild:
		return &game.BuildAction{Civ: civID, City: wa.CityID, Item: wa.Item}, nil
	case game.ActionMoveUnit:
		if wa.To == nil {
			return nil, fmt.Errorf("move_unit without destination")
		}
		return &game.MoveUnitAction{Civ: civID, Unit: wa.UnitID, To: core.NewCoordinate(wa.To.X, wa.To.Y)}, nil
	case game.ActionFoundCity:
		return &game.FoundCityAction{Civ: civID, Unit: wa.UnitID, Name: wa.Name}, nil
	case game.ActionAttack:
		if wa.Target == nil {
			return nil, fmt.Errorf("attack without target")
		}
		return &game.AttackAction{Civ: civID, Unit: wa.UnitID, Target: core.NewCoordinate(wa.Target.X, wa.Target.Y)}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", wa.Kind)
	}
}

// SummarizeCulture implements Service.
func (s *HTTPService) SummarizeCulture(ctx context.Context, civID string, gs *game.GameState) (*CultureSummary, error) {
	reqBody := map[string]interface{}{
		"game_id":   gs.ID,
		"civ_id":    civID,
		"turn":      gs.Turn,
		"artifacts": gs.Civs[civID].Culture.Artifacts,
	}
	raw, err := s.post(ctx, "/v1/culture/summary", reqBody, nil)
	if err != nil {
		return nil, fmt.Errorf("culture summary request for %s: %w", civID, err)
	}
	var resp CultureSummary
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding culture summary for %s: %w", civID, err)
	}
	if resp.Summary == "" {
		return nil, nil
	}
	return &resp, nil
}

// Narrate implements Service.
func (s *HTTPService) Narrate(ctx context.Context, events []string, gs *game.GameState) (string, error) {
	reqBody := map[string]interface{}{
		"game_id": gs.ID,
		"turn":    gs.Turn,
		"events":  events,
	}
	raw, err := s.post(ctx, "/v1/narrate", reqBody, nil)
	if err != nil {
		return "", fmt.Errorf("narration request: %w", err)
	}
	var resp struct {
		Narration string `json:"narration"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding narration response: %w", err)
	}
	return resp.Narration, nil
}

func (s *HTTPService) post(ctx context.Context, path string, body interface{}, schema *jsonschema.Schema) (json.RawMessage, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent backend returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if schema != nil {
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("response is not valid JSON: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("response failed schema validation: %w", err)
		}
	}
	return raw, nil
}

// digest builds the compact read-only view of the world the backend plans
// against; full grids are omitted to keep prompts small.
func digest(gs *game.GameState) map[string]interface{} {
	civs := make([]map[string]interface{}, 0, len(gs.Civs))
	for _, civID := range gs.AliveCivOrder() {
		civ := gs.Civs[civID]
		cities := make([]map[string]interface{}, 0, len(civ.CityIDs))
		for _, cityID := range civ.CityIDs {
			c := gs.Cities[cityID]
			cities = append(cities, map[string]interface{}{
				"id": c.ID, "name": c.Name, "pos": c.Pos,
				"population": c.Population, "production": c.Production,
			})
		}
		units := make([]map[string]interface{}, 0, len(civ.UnitIDs))
		for _, uid := range civ.UnitIDs {
			u := gs.Units[uid]
			units = append(units, map[string]interface{}{
				"id": u.ID, "type": u.TypeID, "pos": u.Pos,
				"hp": u.HP, "movesLeft": u.MovesLeft,
			})
		}
		civs = append(civs, map[string]interface{}{
			"id": civ.ID, "name": civ.Name, "gold": civ.Gold,
			"science": civ.Science, "happiness": civ.Happiness,
			"techs": civ.Techs, "relationships": civ.Relationships,
			"cities": cities, "units": units,
		})
	}
	return map[string]interface{}{
		"turn":     gs.Turn,
		"maxTurns": gs.MaxTurns,
		"width":    gs.Grid.Width(),
		"height":   gs.Grid.Height(),
		"civs":     civs,
	}
}
