package parse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/normalize"
)

var codeColumn = regexp.MustCompile(`^code\|(\d+)$`)

// parseCSV reads a charge file with the fixed three-row header: row one
// names the metadata fields, row two carries their values, row three names
// the data columns. The data-column row decides the tall or wide layout.
func parseCSV(path string, cb Callbacks, opts Options) (*Result, error) {
	f, cr, br, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(br)
	rd.LazyQuotes = true
	rd.FieldsPerRecord = -1

	p := &csvParser{
		rd:   rd,
		cr:   cr,
		cb:   cb,
		opts: opts,
		res:  &Result{},
	}
	if err := p.readHeaders(); err != nil {
		return nil, err
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	p.res.BytesRead = cr.n
	return p.res, nil
}

// ClassifyCSVLayout decides between the tall and wide charge layouts from
// the data-column header row. Tall files carry literal payer_name and
// plan_name columns; wide files repeat a standard_charge|{payer}|{plan}|...
// column family per payer.
func ClassifyCSVLayout(headers []string) (model.Format, error) {
	hasDescription := false
	wide := false
	for _, h := range headers {
		h = strings.ToLower(normalizeHeader(h))
		switch h {
		case "description":
			hasDescription = true
		case "payer_name", "plan_name":
			return model.FormatCSVTall, nil
		}
		parts := strings.Split(h, "|")
		if len(parts) >= 4 && parts[0] == "standard_charge" {
			switch parts[len(parts)-1] {
			case "negotiated_dollar", "negotiated_percentage", "negotiated_algorithm", "methodology":
				wide = true
			}
		}
		if len(parts) >= 3 && parts[0] == "estimated_amount" {
			wide = true
		}
	}
	if !hasDescription {
		return "", errors.New("no description column")
	}
	if wide {
		return model.FormatCSVWide, nil
	}
	return model.FormatCSVTall, nil
}

// normalizeHeader trims whitespace around each pipe segment so
// "code|1| type" matches "code|1|type".
func normalizeHeader(h string) string {
	parts := strings.Split(strings.TrimSpace(h), "|")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return strings.Join(parts, "|")
}

type codeColumns struct {
	code int
	typ  int // -1 when the type column is absent
}

// payerFamily holds the column indices of one payer/plan group in the wide
// layout. -1 marks an absent column.
type payerFamily struct {
	payer, plan                           string
	dollar, pct, algo, est, method, notes int
}

type csvParser struct {
	rd        *csv.Reader
	cr        *countingReader
	cb        Callbacks
	opts      Options
	res       *Result
	layout    model.Format
	colIdx    map[string]int
	headers   []string
	codeCols  []codeColumns
	families  []payerFamily
	rowNum    int64
	processed int64

	// current tall group in progress
	group    *model.RawCharge
	groupKey string
}

func (p *csvParser) readHeaders() error {
	nameRow, err := p.rd.Read()
	if err != nil {
		return fmt.Errorf("read metadata header: %w", err)
	}
	p.rowNum++
	valueRow, err := p.rd.Read()
	if err != nil {
		return fmt.Errorf("read metadata values: %w", err)
	}
	p.rowNum++
	p.res.Hospital = csvMetadata(nameRow, valueRow)

	dataRow, err := p.rd.Read()
	if err != nil {
		return fmt.Errorf("read column headers: %w", err)
	}
	p.rowNum++

	p.headers = make([]string, len(dataRow))
	p.colIdx = make(map[string]int, len(dataRow))
	for i, h := range dataRow {
		h = normalizeHeader(h)
		p.headers[i] = h
		p.colIdx[strings.ToLower(h)] = i
	}

	p.layout, err = ClassifyCSVLayout(p.headers)
	if err != nil {
		return err
	}
	p.extractCodeColumns()
	if p.layout == model.FormatCSVWide {
		p.extractPayerFamilies()
	}
	return nil
}

// csvMetadata recovers hospital metadata from the two fixed header rows.
func csvMetadata(names, values []string) *model.RawHospital {
	meta := &model.RawHospital{}
	for i, name := range names {
		if i >= len(values) {
			break
		}
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		val := sanitize(values[i])
		lower := strings.ToLower(name)
		switch {
		case lower == "hospital_name":
			meta.Name = val
		case lower == "last_updated_on":
			meta.LastUpdatedOn = val
		case lower == "version":
			meta.Version = val
		case lower == "hospital_location":
			if val != "" {
				meta.Locations = append(meta.Locations, val)
			}
		case lower == "hospital_address":
			if val != "" {
				meta.Addresses = append(meta.Addresses, val)
			}
		case strings.HasPrefix(lower, "license_number"):
			// The state rides in the column name: license_number|CA.
			if cut := strings.IndexByte(name, '|'); cut >= 0 {
				meta.LicenseState = strings.ToUpper(strings.TrimSpace(name[cut+1:]))
			}
			meta.LicenseNumber = val
		case strings.Contains(lower, "knowledge and belief"):
			meta.Affirmation = &model.RawAffirmation{
				Text:      name,
				Confirmed: strings.EqualFold(val, "true"),
			}
		}
	}
	return meta
}

func (p *csvParser) extractCodeColumns() {
	for i, h := range p.headers {
		m := codeColumn.FindStringSubmatch(strings.ToLower(h))
		if m == nil {
			continue
		}
		cc := codeColumns{code: i, typ: -1}
		if t, ok := p.colIdx["code|"+m[1]+"|type"]; ok {
			cc.typ = t
		}
		p.codeCols = append(p.codeCols, cc)
	}
}

// extractPayerFamilies scans the headers in order, using the original case
// so payer and plan names keep their published form.
func (p *csvParser) extractPayerFamilies() {
	seen := map[string]int{}
	family := func(payer, plan string) *payerFamily {
		key := payer + "\x00" + plan
		if i, ok := seen[key]; ok {
			return &p.families[i]
		}
		seen[key] = len(p.families)
		p.families = append(p.families, payerFamily{
			payer: payer, plan: plan,
			dollar: -1, pct: -1, algo: -1, est: -1, method: -1, notes: -1,
		})
		return &p.families[len(p.families)-1]
	}

	for i, h := range p.headers {
		parts := strings.Split(h, "|")
		if len(parts) >= 4 && strings.EqualFold(parts[0], "standard_charge") {
			payer := parts[1]
			plan := strings.Join(parts[2:len(parts)-1], "|")
			switch strings.ToLower(parts[len(parts)-1]) {
			case "negotiated_dollar":
				family(payer, plan).dollar = i
			case "negotiated_percentage":
				family(payer, plan).pct = i
			case "negotiated_algorithm":
				family(payer, plan).algo = i
			case "methodology":
				family(payer, plan).method = i
			}
			continue
		}
		if len(parts) >= 3 && strings.EqualFold(parts[0], "estimated_amount") {
			family(parts[1], strings.Join(parts[2:], "|")).est = i
			continue
		}
		if len(parts) >= 3 && strings.EqualFold(parts[0], "additional_payer_notes") {
			family(parts[1], strings.Join(parts[2:], "|")).notes = i
		}
	}
}

func (p *csvParser) run() error {
	if p.cb.OnMetadata != nil {
		if err := p.cb.OnMetadata(p.res.Hospital); err != nil {
			return err
		}
	}

	for {
		row, err := p.rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// Malformed row: record it and resume on the next line.
				pe := model.NewParseError(perr.Line, "", err)
				if p.opts.Strict {
					return pe
				}
				p.res.Errors = append(p.res.Errors, pe)
				continue
			}
			return fmt.Errorf("read row %d: %w", p.rowNum+1, err)
		}
		p.rowNum++

		if isEmptyRow(row) {
			continue
		}

		var done bool
		if p.layout == model.FormatCSVTall {
			done, err = p.tallRow(row)
		} else {
			done, err = p.wideRow(row)
		}
		if err != nil {
			return err
		}
		if done {
			p.res.ReachedCap = true
			return nil
		}
	}

	// Emit the final in-progress group.
	if p.group != nil {
		done, err := p.emit(p.group)
		if err != nil {
			return err
		}
		p.group = nil
		if done {
			p.res.ReachedCap = true
		}
	}
	return nil
}

// tallRow folds one (charge, payer) row into the current charge group. A
// new description or code set closes the group and emits it.
func (p *csvParser) tallRow(row []string) (bool, error) {
	desc := p.cell(row, "description")
	if desc == "" {
		pe := model.NewParseError(int(p.rowNum), "", errors.New("row has no description"))
		if p.opts.Strict {
			return false, pe
		}
		p.res.Errors = append(p.res.Errors, pe)
		return false, nil
	}
	codes := p.rowCodes(row)
	key := groupKey(desc, codes)

	if p.group != nil && key != p.groupKey {
		done, err := p.emit(p.group)
		p.group = nil
		if err != nil || done {
			return done, err
		}
	}
	if p.group == nil {
		p.group = &model.RawCharge{Description: desc, Codes: codes}
		p.groupKey = key
		if unit := cellAmount(p.cell(row, "drug_unit_of_measurement")); unit.Valid {
			p.group.DrugInformation = &model.RawDrug{
				Unit: unit,
				Type: p.cell(row, "drug_type_of_measurement"),
			}
		}
	}

	scope := p.findScope(p.group, p.cell(row, "setting"))
	p.fillScope(scope, row)

	if payer := p.cell(row, "payer_name"); payer != "" {
		scope.Payers = append(scope.Payers, model.RawPayer{
			PayerName:                payer,
			PlanName:                 p.cell(row, "plan_name"),
			Methodology:              p.cell(row, "standard_charge|methodology"),
			StandardChargeDollar:     cellAmount(p.cell(row, "standard_charge|negotiated_dollar")),
			StandardChargePercentage: cellPercent(p.cell(row, "standard_charge|negotiated_percentage")),
			StandardChargeAlgorithm:  p.cell(row, "standard_charge|negotiated_algorithm"),
			EstimatedAmount:          cellAmount(p.cell(row, "estimated_amount")),
			AdditionalPayerNotes:     p.cell(row, "additional_payer_notes"),
		})
	}
	return false, nil
}

// wideRow emits one logical charge per data row; the payer dimension lives
// in repeated column families rather than extra rows.
func (p *csvParser) wideRow(row []string) (bool, error) {
	desc := p.cell(row, "description")
	if desc == "" {
		pe := model.NewParseError(int(p.rowNum), "", errors.New("row has no description"))
		if p.opts.Strict {
			return false, pe
		}
		p.res.Errors = append(p.res.Errors, pe)
		return false, nil
	}
	rec := &model.RawCharge{Description: desc, Codes: p.rowCodes(row)}
	if unit := cellAmount(p.cell(row, "drug_unit_of_measurement")); unit.Valid {
		rec.DrugInformation = &model.RawDrug{
			Unit: unit,
			Type: p.cell(row, "drug_type_of_measurement"),
		}
	}

	setting := p.cell(row, "setting")
	if setting == "" {
		// Wide files frequently omit the setting column entirely.
		setting = "both"
	}
	scope := p.findScope(rec, setting)
	p.fillScope(scope, row)

	for i := range p.families {
		fam := &p.families[i]
		payer := model.RawPayer{
			PayerName:                strings.ReplaceAll(fam.payer, "_", " "),
			PlanName:                 strings.ReplaceAll(fam.plan, "_", " "),
			StandardChargeDollar:     cellAmount(cellAt(row, fam.dollar)),
			StandardChargePercentage: cellPercent(cellAt(row, fam.pct)),
			StandardChargeAlgorithm:  sanitize(cellAt(row, fam.algo)),
			EstimatedAmount:          cellAmount(cellAt(row, fam.est)),
			Methodology:              sanitize(cellAt(row, fam.method)),
			AdditionalPayerNotes:     sanitize(cellAt(row, fam.notes)),
		}
		if !payer.StandardChargeDollar.Valid && !payer.StandardChargePercentage.Valid &&
			!payer.EstimatedAmount.Valid && payer.StandardChargeAlgorithm == "" &&
			payer.Methodology == "" && payer.AdditionalPayerNotes == "" {
			continue
		}
		scope.Payers = append(scope.Payers, payer)
	}
	return p.emit(rec)
}

// emit delivers one completed logical charge. The bool reports whether the
// record cap was reached.
func (p *csvParser) emit(rec *model.RawCharge) (bool, error) {
	idx := int(p.res.Charges)
	p.res.Charges++
	if p.cb.OnCharge != nil {
		if err := p.cb.OnCharge(rec, idx); err != nil {
			return false, err
		}
	}
	p.processed++
	if p.cb.OnProgress != nil && p.processed%p.opts.ProgressEvery == 0 {
		p.cb.OnProgress(Progress{
			Processed:      p.processed,
			EstimatedTotal: p.opts.EstimatedTotal,
			BytesRead:      p.cr.n,
		})
	}
	if p.opts.MaxItems > 0 && p.processed >= p.opts.MaxItems {
		return true, nil
	}
	return false, nil
}

func (p *csvParser) findScope(rec *model.RawCharge, setting string) *model.RawScope {
	setting = strings.ToLower(setting)
	for i := range rec.Scopes {
		if rec.Scopes[i].Setting == setting {
			return &rec.Scopes[i]
		}
	}
	rec.Scopes = append(rec.Scopes, model.RawScope{Setting: setting})
	return &rec.Scopes[len(rec.Scopes)-1]
}

// fillScope sets a scope's universal price fields from the first row that
// discloses them.
func (p *csvParser) fillScope(sc *model.RawScope, row []string) {
	if !sc.GrossCharge.Valid {
		sc.GrossCharge = cellAmount(p.cell(row, "standard_charge|gross"))
	}
	if !sc.DiscountedCash.Valid {
		sc.DiscountedCash = cellAmount(p.cell(row, "standard_charge|discounted_cash"))
	}
	if !sc.Minimum.Valid {
		sc.Minimum = cellAmount(p.cell(row, "standard_charge|min"))
	}
	if !sc.Maximum.Valid {
		sc.Maximum = cellAmount(p.cell(row, "standard_charge|max"))
	}
	if mods := p.cell(row, "modifiers"); mods != "" {
		sc.ModifierCodes = appendModifiers(sc.ModifierCodes, mods)
	}
	if sc.GenericNotes == "" {
		sc.GenericNotes = p.cell(row, "additional_generic_notes")
	}
}

func (p *csvParser) rowCodes(row []string) []model.RawCode {
	var codes []model.RawCode
	for _, cc := range p.codeCols {
		if cc.code >= len(row) {
			continue
		}
		code := sanitize(row[cc.code])
		if code == "" {
			continue
		}
		typ := ""
		if cc.typ >= 0 && cc.typ < len(row) {
			typ = sanitize(row[cc.typ])
		}
		codes = append(codes, model.RawCode{Code: code, Type: typ})
	}
	return codes
}

func (p *csvParser) cell(row []string, col string) string {
	if i, ok := p.colIdx[col]; ok && i < len(row) {
		return sanitize(row[i])
	}
	return ""
}

// groupKey identifies the run of tall rows that belong to one logical
// charge: same description and same code set.
func groupKey(desc string, codes []model.RawCode) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(desc))
	for _, c := range codes {
		b.WriteByte(0)
		b.WriteString(strings.ToUpper(c.Type))
		b.WriteByte('=')
		b.WriteString(strings.ToUpper(c.Code))
	}
	return b.String()
}

func appendModifiers(dst []string, cell string) []string {
	for _, m := range strings.FieldsFunc(cell, func(r rune) bool { return r == '|' || r == ',' }) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		dup := false
		for _, have := range dst {
			if have == m {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, m)
		}
	}
	return dst
}

func cellAt(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return row[i]
	}
	return ""
}

func cellAmount(s string) model.FlexibleFloat {
	if v := normalize.ParseAmount(s); v != nil {
		return model.FlexibleFloat{Value: *v, Valid: true}
	}
	return model.FlexibleFloat{}
}

func cellPercent(s string) model.FlexibleFloat {
	if v := normalize.ParsePercent(s); v != nil {
		return model.FlexibleFloat{Value: *v, Valid: true}
	}
	return model.FlexibleFloat{}
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
