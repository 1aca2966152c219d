package domain

import "sort"

// Reactions maps an emoji to the set of users who reacted with it.
// An emoji key with no reacting users never exists.
type Reactions map[string]UserSet

// ReactionSummary is the render view of one emoji on a message.
type ReactionSummary struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Mine  bool   `json:"mine"`
}

// Toggle flips uid's membership for emoji and reports whether uid now
// reacts with it. The map is allocated on first use.
func (r *Reactions) Toggle(emoji, uid string) bool {
	if *r == nil {
		*r = Reactions{}
	}
	set := (*r)[emoji]
	if set.Remove(uid) {
		if len(set) == 0 {
			delete(*r, emoji)
		} else {
			(*r)[emoji] = set
		}
		return false
	}
	set.Add(uid)
	(*r)[emoji] = set
	return true
}

// Has reports whether uid reacted with emoji.
func (r Reactions) Has(emoji, uid string) bool {
	return r[emoji].Contains(uid)
}

// Summaries returns per-emoji counts for viewer, most used first and then
// by emoji for a stable order.
func (r Reactions) Summaries(viewer string) []ReactionSummary {
	out := make([]ReactionSummary, 0, len(r))
	for emoji, users := range r {
		if len(users) == 0 {
			continue
		}
		out = append(out, ReactionSummary{
			Emoji: emoji,
			Count: len(users),
			Mine:  users.Contains(viewer),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}

func (r Reactions) Clone() Reactions {
	cp := make(Reactions, len(r))
	for k, v := range r {
		cp[k] = v.Clone()
	}
	return cp
}
