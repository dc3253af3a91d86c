package models

const (
	// EmbeddingDimensions is the width of the vector(1536) columns in the documents schema.
	EmbeddingDimensions = 1536

	ContextSeparator   = "\n---\n"
	NoHistoryMessage   = "No previous conversation."
	EllipsisMarker     = "..."
	DegradedAIWarning  = "AI search temporarily unavailable. Showing similarity results only."
	UnreadableDocument = "Could not extract text from the document. The file might be image-based or corrupted."
)

var (
	SystemPrompt = `You are a helpful AI assistant that answers questions based on the provided document context.
Use only the information from the provided documents to answer questions. If the information is not available in the documents,
say so clearly. Always cite your sources by referencing the document excerpts provided. Look carefully through all the provided
context to find relevant information, even if it's mentioned briefly.`

	// UserPromptTemplate placeholders, in order: context, chat history, question.
	UserPromptTemplate = `Context from relevant documents:
%s

Chat History:
%s

User Question: %s

Please provide a comprehensive answer based on the context above. Look through all the provided document excerpts carefully
to find any relevant information. Pay special attention to:
- Technology names, frameworks, and tools mentioned
- Skills, experience, and expertise areas
- Project descriptions and work experience
- Any specific details that relate to the question

Include specific references to the document excerpts that support your answer. If you find relevant information, explain it
clearly and cite the source document. If the information is mentioned in the context, please provide it even if it's brief.`
)
