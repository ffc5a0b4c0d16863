package lua

import (
	"strconv"
	"strings"
	"time"
)

// OpenOs installs a deliberately narrow os library: wall-clock reads only.
// The teacher's os.execute/remove/rename/tmpname/getenv/setenv and the
// whole io library are dropped outright — this sandbox grants no
// filesystem or process access (Non-goals).
func OpenOs(g *Globals) {
	mod := NewTable(0, 4)
	for name, fn := range osFuncs {
		mod.Set(String(name), NewGFunction("os."+name, fn))
	}
	g.Table.Set(String("os"), mod)
}

var osFuncs = map[string]GFunction{
	"time":     osTime,
	"clock":    osClock,
	"difftime": osDiffTime,
	"date":     osDate,
}

var processStart = time.Now()

func osTime(l *LState) int {
	if tbl, ok := l.Arg(1).(*Table); ok {
		year := int(tbl.Get(String("year")).(Int))
		month := int(tbl.Get(String("month")).(Int))
		day := int(tbl.Get(String("day")).(Int))
		hour, min, sec := 12, 0, 0
		if v, ok := tbl.Get(String("hour")).(Int); ok {
			hour = int(v)
		}
		if v, ok := tbl.Get(String("min")).(Int); ok {
			min = int(v)
		}
		if v, ok := tbl.Get(String("sec")).(Int); ok {
			sec = int(v)
		}
		t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.Local)
		l.Push(Int(t.Unix()))
		return 1
	}
	l.Push(Int(time.Now().Unix()))
	return 1
}

func osClock(l *LState) int {
	l.Push(Number(time.Since(processStart).Seconds()))
	return 1
}

func osDiffTime(l *LState) int {
	t2 := l.CheckNumber(1)
	t1 := l.CheckNumber(2)
	l.Push(Number(float64(t2) - float64(t1)))
	return 1
}

// osDate implements the subset of os.date a strftime-based implementation
// covers, reimplemented against Go's time package layouts instead
// of a flag-scanner over a legacy value model.
func osDate(l *LState) int {
	format := l.OptString(1, "%c")
	t := time.Now()
	if l.ArgCount() >= 2 {
		t = time.Unix(int64(l.CheckNumber(2)), 0)
	}
	utc := false
	if strings.HasPrefix(format, "!") {
		utc = true
		format = format[1:]
		t = t.UTC()
	}
	_ = utc
	if format == "*t" || format == "!*t" {
		tbl := NewTable(0, 8)
		tbl.Set(String("year"), Int(t.Year()))
		tbl.Set(String("month"), Int(t.Month()))
		tbl.Set(String("day"), Int(t.Day()))
		tbl.Set(String("hour"), Int(t.Hour()))
		tbl.Set(String("min"), Int(t.Minute()))
		tbl.Set(String("sec"), Int(t.Second()))
		tbl.Set(String("wday"), Int(int(t.Weekday())+1))
		tbl.Set(String("yday"), Int(t.YearDay()))
		tbl.Set(String("isdst"), False)
		l.Push(tbl)
		return 1
	}
	l.Push(String(strftimeLite(t, format)))
	return 1
}

var strftimeLayouts = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02",
	'H': "15", 'M': "04", 'S': "05", 'p': "PM",
	'A': "Monday", 'a': "Mon", 'B': "January", 'b': "Jan",
	'Z': "MST", 'z': "-0700",
}

// strftimeLite covers the common conversion specifiers; anything else is
// copied through literally rather than attempting full strftime fidelity.
func strftimeLite(t time.Time, format string) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			sb.WriteByte(format[i])
			continue
		}
		i++
		c := format[i]
		if c == '%' {
			sb.WriteByte('%')
			continue
		}
		if c == 'j' {
			sb.WriteString(strconv.Itoa(t.YearDay()))
			continue
		}
		if c == 'c' {
			sb.WriteString(t.Format("Mon Jan  2 15:04:05 2006"))
			continue
		}
		if layout, ok := strftimeLayouts[c]; ok {
			sb.WriteString(t.Format(layout))
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(c)
	}
	return sb.String()
}
