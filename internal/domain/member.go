package domain

import "maps"

// Member is a per-room user snapshot. It is what room mates see.
type Member struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Avatar string         `json:"avatar,omitempty"`
	Status map[string]any `json:"status,omitempty"`
}

func NewMember(id string, d Display) Member {
	d = d.OrAnonymous()
	return Member{ID: id, Name: d.Name, Avatar: d.Avatar}
}

// WithStatus merges a status patch into a copy of the member.
func (m Member) WithStatus(patch map[string]any) Member {
	next := make(map[string]any, len(m.Status)+len(patch))
	maps.Copy(next, m.Status)
	maps.Copy(next, patch)
	m.Status = next
	return m
}
