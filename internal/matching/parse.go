package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rfpquote/internal/util"
)

type VoltageClass string

const (
	Voltage1100V   VoltageClass = "1.1 kV"
	Voltage450750V VoltageClass = "450/750 V"
	Voltage3300V   VoltageClass = "3.3 kV"
	Voltage6600V   VoltageClass = "6.6 kV"
	Voltage11000V  VoltageClass = "11 kV"
	Voltage33000V  VoltageClass = "33 kV"
)

type Insulation string

const (
	InsulationXLPE   Insulation = "XLPE"
	InsulationPVC    Insulation = "PVC"
	InsulationFRLSH  Insulation = "FR-LSH"
	InsulationRubber Insulation = "RUBBER"
)

type voltagePattern struct {
	re    *regexp.Regexp
	class VoltageClass
}

// Checked in order; the first hit decides the class.
var voltagePatterns = []voltagePattern{
	{re: regexp.MustCompile(`1\.1 ?kv`), class: Voltage1100V},
	{re: regexp.MustCompile(`450 ?/ ?750`), class: Voltage450750V},
	{re: regexp.MustCompile(`(?:^|[^\d.])3\.3 ?kv`), class: Voltage3300V},
	{re: regexp.MustCompile(`(?:^|[^\d.])6\.6 ?kv`), class: Voltage6600V},
	{re: regexp.MustCompile(`(?:^|[^\d.])11 ?kv`), class: Voltage11000V},
	{re: regexp.MustCompile(`(?:^|[^\d.])33 ?kv`), class: Voltage33000V},
}

// Scanned in order; a later hit overwrites an earlier one ("fr-lsh pvc" -> FR-LSH).
var insulationTokens = []struct {
	token string
	value Insulation
}{
	{token: "xlpe", value: InsulationXLPE},
	{token: "pvc", value: InsulationPVC},
	{token: "fr-lsh", value: InsulationFRLSH},
	{token: "rubber", value: InsulationRubber},
}

var (
	reCores = regexp.MustCompile(`(\d+)\s*c(?:ore)?`)
	reSize  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*sqmm`)
)

// Requirement holds the attributes recognised in a requirement text. A nil field
// is unknown and takes no part in scoring.
type Requirement struct {
	Voltage    *VoltageClass `json:"voltage,omitempty"`
	Insulation *Insulation   `json:"insulation,omitempty"`
	Cores      *int          `json:"cores,omitempty"`
	SizeSqmm   *float64      `json:"size_sqmm,omitempty"`
}

// ParseRequirement never fails: text it cannot read yields an empty Requirement.
func ParseRequirement(text string) Requirement {
	s := util.NormalizeText(text)
	var req Requirement

	for _, p := range voltagePatterns {
		if p.re.MatchString(s) {
			class := p.class
			req.Voltage = &class
			break
		}
	}

	for _, ins := range insulationTokens {
		if strings.Contains(s, ins.token) {
			value := ins.value
			req.Insulation = &value
		}
	}

	if m := reCores.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			req.Cores = &n
		}
	}

	if m := reSize.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			req.SizeSqmm = &f
		}
	}

	return req
}

// Criteria is the number of recognised attributes.
func (r Requirement) Criteria() int {
	n := 0
	if r.Voltage != nil {
		n++
	}
	if r.Insulation != nil {
		n++
	}
	if r.Cores != nil {
		n++
	}
	if r.SizeSqmm != nil {
		n++
	}
	return n
}

func (r Requirement) Empty() bool { return r.Criteria() == 0 }

func (r Requirement) String() string {
	parts := []string{}
	if r.Voltage != nil {
		parts = append(parts, string(*r.Voltage))
	}
	if r.Insulation != nil {
		parts = append(parts, string(*r.Insulation))
	}
	if r.Cores != nil {
		parts = append(parts, fmt.Sprintf("%dC", *r.Cores))
	}
	if r.SizeSqmm != nil {
		parts = append(parts, strconv.FormatFloat(*r.SizeSqmm, 'f', -1, 64)+" sqmm")
	}
	if len(parts) == 0 {
		return "no recognised attributes"
	}
	return strings.Join(parts, ", ")
}
