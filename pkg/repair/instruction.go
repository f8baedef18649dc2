package repair

// Текст инструкции исправления. Диагностика подставляется между частями как есть.
const (
	repairPrefix = "We run into the following problem executing the code, please fix it:\n\n"
	repairSuffix = "\n\nPlease think step by step, reflect why the error happens and fix the code so that no more errors would occur."
)

// RepairInstruction строит followup инструкцию из диагностики лидера.
func RepairInstruction(diagnostic string) string {
	return repairPrefix + diagnostic + repairSuffix
}
