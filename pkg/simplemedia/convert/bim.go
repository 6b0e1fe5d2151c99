package convert

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// BIM renders a summary card of an IFC (ISO 10303-21) model: project and
// site names, storey count and wall, window and door counts.
type BIM struct{}

var (
	ifcEntity = regexp.MustCompile(`^#\d+\s*=\s*([A-Z0-9_]+)\s*\((.*)\)\s*;\s*$`)
	ifcSchema = regexp.MustCompile(`FILE_SCHEMA\s*\(\s*\(\s*'([^']*)'`)
)

type ifcSummary struct {
	project, site string
	schema        string
	counts        map[string]int
}

func (BIM) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	sum, err := parseIFC(src)

	var data []byte
	if err != nil {
		data, err = bimCard.render("BIM Parsing Error", "Could not parse IFC: "+err.Error())
	} else {
		title := "BIM Project: " + orDefault(sum.project, "Unnamed")
		text := fmt.Sprintf("Site: %s\nBuilding Stories: %d\nElement Count:\n- Walls: %d\n- Windows: %d\n- Doors: %d\nSchema: %s",
			orDefault(sum.site, "Unknown"),
			sum.counts["IFCBUILDINGSTOREY"],
			sum.counts["IFCWALL"]+sum.counts["IFCWALLSTANDARDCASE"],
			sum.counts["IFCWINDOW"],
			sum.counts["IFCDOOR"],
			orDefault(sum.schema, "Unknown"))
		data, err = bimCard.render(title, text)
	}
	if err != nil {
		return nil, err
	}
	return pngRendition(data), nil
}

func orDefault(v, def string) string {
	if v == "" || v == "$" {
		return def
	}
	return v
}

func parseIFC(src []byte) (*ifcSummary, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(src), []byte("ISO-10303-21")) {
		return nil, errors.New("missing ISO-10303-21 header")
	}
	sum := &ifcSummary{counts: map[string]int{}}
	if m := ifcSchema.FindSubmatch(src); m != nil {
		sum.schema = string(m[1])
	}

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	var stmt strings.Builder
	for sc.Scan() {
		stmt.WriteString(strings.TrimSpace(sc.Text()))
		if !strings.HasSuffix(stmt.String(), ";") {
			continue
		}
		line := stmt.String()
		stmt.Reset()

		m := ifcEntity.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		sum.counts[name]++
		switch {
		case name == "IFCPROJECT" && sum.project == "":
			sum.project = ifcStringArg(m[2], 2)
		case name == "IFCSITE" && sum.site == "":
			sum.site = ifcStringArg(m[2], 2)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(sum.counts) == 0 {
		return nil, errors.New("no entities found")
	}
	return sum, nil
}

// ifcStringArg returns the n-th top-level argument with quotes removed.
func ifcStringArg(args string, n int) string {
	depth, idx, start := 0, 0, 0
	inString := false
	for i := 0; i <= len(args); i++ {
		if i == len(args) || (!inString && depth == 0 && args[i] == ',') {
			if idx == n {
				return strings.Trim(strings.TrimSpace(args[start:i]), "'")
			}
			idx++
			start = i + 1
			continue
		}
		switch args[i] {
		case '\'':
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
			}
		}
	}
	return ""
}
