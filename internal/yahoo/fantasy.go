package yahoo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// The Fantasy v2 JSON format does not use plain arrays for collections.
// Depending on the resource and the number of results, a collection can be
// a real array, an object keyed by numeric strings plus a "count" field, or
// a bare object when there is exactly one result. Collection normalizes all
// three shapes into one ordered sequence at the boundary so nothing
// downstream has to index into ambiguous structures.
type Collection []json.RawMessage

// UnmarshalJSON implements the tolerant decode described above.
func (c *Collection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*c = raw
		return nil

	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}

		type indexed struct {
			idx int
			raw json.RawMessage
		}
		items := make([]indexed, 0, len(m))
		numericKeys := true
		for k, v := range m {
			if k == "count" {
				continue
			}
			n, err := strconv.Atoi(k)
			if err != nil {
				numericKeys = false
				break
			}
			items = append(items, indexed{idx: n, raw: v})
		}

		if numericKeys {
			sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
			out := make(Collection, len(items))
			for i, it := range items {
				out[i] = it.raw
			}
			*c = out
			return nil
		}

		// A plain object is a single result.
		*c = Collection{json.RawMessage(append([]byte(nil), data...))}
		return nil

	default:
		return fmt.Errorf("cannot decode %q as a fantasy collection", data[0])
	}
}

// flexString accepts both JSON strings and numbers; Yahoo flips between the
// two for fields like season depending on the resource.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// League is the normalized league record served to the SPA's league picker.
type League struct {
	LeagueKey string `json:"league_key"`
	LeagueID  string `json:"league_id"`
	Name      string `json:"name"`
	Season    string `json:"season"`
	NumTeams  int    `json:"num_teams"`
}

type leagueMeta struct {
	LeagueKey flexString `json:"league_key"`
	LeagueID  flexString `json:"league_id"`
	Name      string     `json:"name"`
	Season    flexString `json:"season"`
	NumTeams  int        `json:"num_teams"`
}

// ParseLeagues walks a users→games→leagues response and returns the leagues
// in document order. Fragments that do not carry league metadata (Yahoo
// interleaves metadata objects and sub-resource wrappers in the same
// collection) are skipped rather than treated as errors.
func ParseLeagues(body []byte) ([]League, error) {
	var root struct {
		FantasyContent struct {
			Users Collection `json:"users"`
		} `json:"fantasy_content"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decoding fantasy response: %w", err)
	}

	var leagues []League
	for _, userEntry := range root.FantasyContent.Users {
		var userWrap struct {
			User Collection `json:"user"`
		}
		if err := json.Unmarshal(userEntry, &userWrap); err != nil {
			continue
		}
		for _, userPart := range userWrap.User {
			var gamesWrap struct {
				Games Collection `json:"games"`
			}
			if err := json.Unmarshal(userPart, &gamesWrap); err != nil || len(gamesWrap.Games) == 0 {
				continue
			}
			for _, gameEntry := range gamesWrap.Games {
				var gameWrap struct {
					Game Collection `json:"game"`
				}
				if err := json.Unmarshal(gameEntry, &gameWrap); err != nil {
					continue
				}
				for _, gamePart := range gameWrap.Game {
					var leaguesWrap struct {
						Leagues Collection `json:"leagues"`
					}
					if err := json.Unmarshal(gamePart, &leaguesWrap); err != nil || len(leaguesWrap.Leagues) == 0 {
						continue
					}
					for _, leagueEntry := range leaguesWrap.Leagues {
						leagues = append(leagues, leaguesFromEntry(leagueEntry)...)
					}
				}
			}
		}
	}

	return leagues, nil
}

// leaguesFromEntry extracts league metadata from one collection entry. The
// entry is either {"league": <object|array>} or the metadata object itself.
func leaguesFromEntry(entry json.RawMessage) []League {
	var wrap struct {
		League Collection `json:"league"`
	}
	parts := Collection{entry}
	if err := json.Unmarshal(entry, &wrap); err == nil && len(wrap.League) > 0 {
		parts = wrap.League
	}

	var out []League
	for _, part := range parts {
		var meta leagueMeta
		if err := json.Unmarshal(part, &meta); err != nil {
			continue
		}
		if meta.LeagueKey == "" {
			continue
		}
		out = append(out, League{
			LeagueKey: string(meta.LeagueKey),
			LeagueID:  string(meta.LeagueID),
			Name:      meta.Name,
			Season:    string(meta.Season),
			NumTeams:  meta.NumTeams,
		})
	}
	return out
}
