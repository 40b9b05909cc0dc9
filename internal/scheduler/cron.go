package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule は5フィールドのcron式（分 時 日 月 曜日）を表す。
// 各フィールドは *、数値、カンマ区切り、範囲（a-b）、ステップ（*/n）をサポートする。
type Schedule struct {
	minutes  map[int]bool
	hours    map[int]bool
	days     map[int]bool
	months   map[int]bool
	weekdays map[int]bool
}

// cronField はフィールドごとの取りうる値の範囲を定義する。
type cronField struct {
	name string
	min  int
	max  int
}

var cronFields = []cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCron はcron式をパースする。形式不正の場合はエラーを返す。
func ParseCron(expr string) (*Schedule, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	sets := make([]map[int]bool, 5)
	for i, field := range fields {
		set, err := parseCronField(field, cronFields[i])
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}

	return &Schedule{
		minutes:  sets[0],
		hours:    sets[1],
		days:     sets[2],
		months:   sets[3],
		weekdays: sets[4],
	}, nil
}

// Matches は指定時刻がスケジュールに一致するかを分精度で判定する。
func (s *Schedule) Matches(t time.Time) bool {
	return s.minutes[t.Minute()] &&
		s.hours[t.Hour()] &&
		s.days[t.Day()] &&
		s.months[int(t.Month())] &&
		s.weekdays[int(t.Weekday())]
}

// parseCronField は1フィールドをパースして許容値の集合を返す。
func parseCronField(field string, def cronField) (map[int]bool, error) {
	set := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.Index(part, "/"); idx >= 0 {
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step in %s field: %q", def.name, part)
			}
			step = n
			part = part[:idx]
		}

		lo, hi := def.min, def.max
		switch {
		case part == "*":
			// 全範囲
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			lo, err = strconv.Atoi(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range in %s field: %q", def.name, part)
			}
			hi, err = strconv.Atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range in %s field: %q", def.name, part)
			}
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid value in %s field: %q", def.name, part)
			}
			lo, hi = n, n
		}

		if lo < def.min || hi > def.max || lo > hi {
			return nil, fmt.Errorf("%s field out of range [%d-%d]: %q", def.name, def.min, def.max, field)
		}

		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}

	return set, nil
}
