package observation

// ResolveSeverity derives the authoritative severity from the layers:
// assessment, else rule, else parser, else the CVSS-derived bucket.
func ResolveSeverity(o *Observation) Severity {
	if o.assessmentSeverity != "" {
		return o.assessmentSeverity
	}
	if o.ruleSeverity != "" {
		return o.ruleSeverity
	}
	if o.parserSeverity != "" && o.parserSeverity != SeverityUnknown {
		return o.parserSeverity
	}
	return SeverityFromCVSS(o.cvssScore)
}

// ResolveStatus derives the authoritative status. A scanner explicitly
// reporting resolution cannot be overridden; below that the layers win in
// assessment, rule, parser order, falling back to open.
func ResolveStatus(o *Observation) Status {
	if o.parserStatus == StatusResolved {
		return StatusResolved
	}
	if o.assessmentStatus != "" {
		return o.assessmentStatus
	}
	if o.ruleStatus != "" {
		return o.ruleStatus
	}
	if o.vexStatus != "" {
		return o.vexStatus
	}
	if o.parserStatus != "" {
		return o.parserStatus
	}
	return StatusOpen
}

// ResolveJustification derives the authoritative VEX justification: rule
// layer first, else vex layer, else empty. The assessment justification is
// an external input and arrives through the rule layer of its product.
func ResolveJustification(o *Observation) Justification {
	if o.ruleJustification != "" {
		return o.ruleJustification
	}
	if o.vexJustification != "" {
		return o.vexJustification
	}
	return ""
}
