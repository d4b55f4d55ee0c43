package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/val20-11/mac-attendance/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 内容解析为活动列表，每个 VEVENT 对应一场活动：
//   - SUMMARY → 标题，DESCRIPTION → 简介，LOCATION → 地点
//   - DTSTART/DTEND 换算到活动时区后确定日期与起止时间，不支持跨日
//   - URL 存在时视为线上（无 LOCATION）或混合（有 LOCATION）
//   - ORGANIZER 的 CN 参数作为主讲人
// ─────────────────────────────────────────────────────────────

const icsMaxFileSize = 5 * 1024 * 1024 // 5MB

var (
	ErrICSEmpty         = errors.New("ICS 文件中没有活动")
	ErrICSUnreadable    = errors.New("ICS 格式解析失败")
	errICSMissingTitle  = errors.New("缺少 SUMMARY")
	errICSMissingStart  = errors.New("缺少或无法解析 DTSTART")
	errICSMissingEnd    = errors.New("缺少或无法解析 DTEND")
	errICSCrossMidnight = errors.New("不支持跨日活动")
)

// ParsedICSEvent 单个 VEVENT 的解析结果，Err 非空时 Event 无效
type ParsedICSEvent struct {
	UID   string
	Event model.Event
	Err   error
}

// ParseEventsICS 解析 ICS 内容，loc 为活动时区
func ParseEventsICS(reader io.Reader, loc *time.Location) ([]ParsedICSEvent, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSUnreadable, err)
	}

	vevents := cal.Events()
	if len(vevents) == 0 {
		return nil, ErrICSEmpty
	}

	result := make([]ParsedICSEvent, 0, len(vevents))
	for i, vevent := range vevents {
		uid := propValue(vevent, ics.ComponentPropertyUniqueId)
		if uid == "" {
			uid = fmt.Sprintf("#%d", i+1)
		}
		event, err := parseVEvent(vevent, loc)
		result = append(result, ParsedICSEvent{UID: uid, Event: event, Err: err})
	}
	return result, nil
}

// parseVEvent 解析单个 VEVENT 组件
func parseVEvent(evt *ics.VEvent, loc *time.Location) (model.Event, error) {
	title := propValue(evt, ics.ComponentPropertySummary)
	if title == "" {
		return model.Event{}, errICSMissingTitle
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return model.Event{}, errICSMissingStart
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		return model.Event{}, errICSMissingEnd
	}
	if !model.SameDate(dtStart, dtEnd) {
		return model.Event{}, errICSCrossMidnight
	}

	description := propValue(evt, ics.ComponentPropertyDescription)
	if description == "" {
		description = title
	}

	location := propValue(evt, ics.ComponentPropertyLocation)
	modality := model.ModalityInPerson
	var meetingLink *string
	if url := propValue(evt, ics.ComponentPropertyUrl); url != "" {
		meetingLink = &url
		modality = model.ModalityHybrid
		if location == "" {
			modality = model.ModalityOnline
			location = "线上"
		}
	}
	if location == "" {
		location = "待定"
	}

	speaker := "待定"
	if org := evt.GetProperty(ics.ComponentPropertyOrganizer); org != nil {
		if cn, ok := org.ICalParameters["CN"]; ok && len(cn) > 0 && strings.TrimSpace(cn[0]) != "" {
			speaker = strings.TrimSpace(cn[0])
		}
	}

	y, m, d := dtStart.Date()
	return model.Event{
		Title:       title,
		Description: description,
		EventType:   model.EventTypeConference,
		Modality:    modality,
		Speaker:     speaker,
		EventDate:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		StartTime:   dtStart.Format("15:04"),
		EndTime:     dtEnd.Format("15:04"),
		Location:    location,
		MaxCapacity: 100,
		IsActive:    true,
		MeetingLink: meetingLink,
	}, nil
}

func propValue(evt *ics.VEvent, name ics.ComponentProperty) string {
	prop := evt.GetProperty(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(prop.Value)
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
