package llm

const systemPrompt = `You are an expert software developer conducting code reviews.
Provide concise, actionable feedback focusing on code quality, best practices, and potential improvements.
Format your review in clear sections for positive aspects and suggestions.`

const userPromptFmt = `Review this code change in %s:

%s

Analyze the code for:
1. Good practices and improvements implemented
2. Potential issues or areas for improvement
3. Security concerns if any
4. Performance considerations

Provide your review in this format:
1. Positive points: [Brief list of good implementations]
2. Key suggestions: [Prioritized list of improvements]
3. Code example: [If applicable, show a brief example of suggested improvement]
4. Summary: [One-line overview of code quality]`
