package structurer

import "strings"

// SystemMessage is sent ahead of every structuring request.
const SystemMessage = "You are an expert in extracting structured data from unstructured text. You will return only valid JSON."

const fieldInstructions = `For business cards, I need the following fields (use null if not available):
- Name
- Company
- Primary Email
- Secondary Email
- Primary Number
- Secondary Number
Return only valid, parseable JSON with proper quotes and escaped characters.`

const instructions = `Instructions:
1. Identify what type of document this is (business card, invoice, receipt, etc.)
2. Extract all relevant fields and values based on the document type
3. Organize them into a structured JSON object
4. Use appropriate keys that describe the data (name, email, phone, address, company, job_title, etc.)
5. For unclear or missing information, use null values
6. Format phone numbers, addresses, and dates consistently
7. Return ONLY the JSON object, with no explanation
`

// BuildTextPrompt returns the structuring prompt for OCR output.
func BuildTextPrompt(text string) string {
	var b strings.Builder
	b.WriteString("I want you to extract structured information from the OCR text of a document (likely a business card, form, or receipt).\n")
	b.WriteString("Here's the extracted text:\n```\n")
	b.WriteString(text)
	b.WriteString("\n```\n")
	b.WriteString(instructions)
	b.WriteString(fieldInstructions)
	return b.String()
}

// BuildImagePrompt returns the structuring prompt sent alongside an attached image.
func BuildImagePrompt() string {
	return "I want you to extract structured information from the attached image of a document (likely a business card, form, or receipt).\n" +
		instructions + fieldInstructions
}
