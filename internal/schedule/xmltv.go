/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hugin_tv/internal/models"
)

const xmltvTimeLayout = "20060102150405 -0700"

// ChannelIdentity names the channel in the exported guide.
type ChannelIdentity struct {
	ID   string
	Name string
	Icon string
}

// GuideExporter renders the schedule as an XMLTV document for EPG
// consumers.
type GuideExporter struct {
	store   *Store
	channel ChannelIdentity
	logger  zerolog.Logger
}

// NewGuideExporter constructs a guide exporter.
func NewGuideExporter(store *Store, channel ChannelIdentity, logger zerolog.Logger) *GuideExporter {
	return &GuideExporter{
		store:   store,
		channel: channel,
		logger:  logger.With().Str("component", "xmltv_export").Logger(),
	}
}

type xmltvDoc struct {
	XMLName    xml.Name         `xml:"tv"`
	Channels   []xmltvChannel   `xml:"channel"`
	Programmes []xmltvProgramme `xml:"programme"`
}

type xmltvChannel struct {
	ID          string     `xml:"id,attr"`
	DisplayName string     `xml:"display-name"`
	Icon        *xmltvIcon `xml:"icon,omitempty"`
}

type xmltvIcon struct {
	Src    string `xml:"src,attr"`
	Width  int    `xml:"width,attr,omitempty"`
	Height int    `xml:"height,attr,omitempty"`
}

type xmltvProgramme struct {
	Start   string     `xml:"start,attr"`
	Stop    string     `xml:"stop,attr"`
	Channel string     `xml:"channel,attr"`
	Title   xmltvText  `xml:"title"`
	Desc    xmltvText  `xml:"desc"`
	Icon    *xmltvIcon `xml:"icon,omitempty"`
}

type xmltvText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// Write renders the guide covering everything from yesterday midnight
// onward to w.
func (g *GuideExporter) Write(ctx context.Context, w io.Writer) error {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)
	from := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, now.Location())

	entries, err := g.store.EntriesFrom(ctx, from)
	if err != nil {
		return fmt.Errorf("load schedule entries: %w", err)
	}

	doc := xmltvDoc{
		Channels: []xmltvChannel{{
			ID:          g.channel.ID,
			DisplayName: g.channel.Name,
		}},
	}
	if g.channel.Icon != "" {
		doc.Channels[0].Icon = &xmltvIcon{Src: g.channel.Icon, Width: 100, Height: 100}
	}

	for _, entry := range entries {
		doc.Programmes = append(doc.Programmes, g.programme(entry))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}

	g.logger.Info().Int("programmes", len(doc.Programmes)).Time("from", from).Msg("exported guide")
	return nil
}

func (g *GuideExporter) programme(entry models.ScheduleEntry) xmltvProgramme {
	desc := entry.Description
	if desc == "" {
		desc = "No description"
	}

	p := xmltvProgramme{
		Start:   entry.StartTime.Format(xmltvTimeLayout),
		Stop:    entry.EndTime.Format(xmltvTimeLayout),
		Channel: g.channel.ID,
		Title:   xmltvText{Lang: "en", Value: entry.Title},
		Desc:    xmltvText{Lang: "en", Value: desc},
	}
	if entry.Thumbnail != "" && entry.ThumbnailWidth > 0 && entry.ThumbnailHeight > 0 {
		p.Icon = &xmltvIcon{Src: entry.Thumbnail, Width: entry.ThumbnailWidth, Height: entry.ThumbnailHeight}
	}
	return p
}
