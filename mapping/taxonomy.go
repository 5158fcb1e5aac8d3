package mapping

// DefaultLabels is the expected taxonomy of a software requirements
// specification. Order is significant: results serialize in this order,
// and the final entry is the catch-all bucket for sections that match
// nothing else.
func DefaultLabels() []string {
	return []string{
		"Cover Page",
		"1 Introduction",
		"2 Acronyms",
		"3 Reference Documents",
		"4 Product Description",
		"5 Assumptions",
		"6 Hardware Requirements",
		"7 States and Mode of Software",
		"8 Detailed Software Requirement",
		"9 Timing Requirements",
		"10 Loadable Data Requirements",
		"11 Internal and External Interface Requirement",
		"12 Safety & Security Requirements",
		"13 Software Testing Requirements",
		"14 General Constraints",
		"15 Traceability Matrix",
		"16 Overview",
		"17 SomethingElse",
	}
}
