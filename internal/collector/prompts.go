package collector

import "fmt"

// Prompt templates sent to the text-generation provider. Responses are
// parsed by the parser package; every template asks for bare JSON.

const intentPromptTemplate = `Analyze the search intent for this query: %q

Classify the intent as one of:
- informational (seeking information, how-to, explanation)
- transactional (buying, purchasing, finding services)
- navigational (looking for specific website or page)

Respond in JSON format:
{
    "intent": {
        "type": "informational|transactional|navigational",
        "confidence": 0.0-1.0,
        "reasoning": "brief explanation"
    }
}
Return ONLY valid JSON.`

func intentPrompt(query string) string {
	return fmt.Sprintf(intentPromptTemplate, query)
}

const sentimentPromptTemplate = `Grade the following cited source for the query %q.

Title: %s
Snippet: %s

Respond in JSON format:
{
    "citations": [
        {
            "url": %q,
            "sentiment": "positive | neutral | negative",
            "ai_reusability": "High | Medium | Low"
        }
    ]
}
Return ONLY valid JSON.`

func sentimentPrompt(query, url, title, snippet string) string {
	return fmt.Sprintf(sentimentPromptTemplate, query, title, snippet, url)
}

const comprehensivePromptTemplate = `## Role
You are a search answer engine. Your goal is to synthesize a definitive "AI Overview" for a specific user query using real-time search simulation logic.

## Task
Analyze the query: %q
Generate a high-relevance response grounded in actual web data.

## Search Engine Constraints
- **Evidence-First:** Do not state facts that cannot be attributed to a citation.
- **Brand Neutrality:** Mention brands only if they are the subject of the query or represent the primary authority on the topic.
- **Zero Hallucination:** If no real-world source is known, do not "hallucinate". Instead, omit the citation and adjust the confidence of the statement.

## Output Schema (JSON Only)
{
  "intent": {
    "type": "informational | transactional | navigational",
    "confidence": 0.85,
    "reasoning": "Brief explanation of intent classification"
  },
  "ai_overview": {
    "text": "A 2-4 sentence comprehensive answer that directly addresses the query. Be specific and factual."
  },
  "citations": [
    {
      "url": "https://example.com/article",
      "title": "Article Title from Source",
      "snippet": "Specific excerpt from the source that supports the AI overview",
      "source_type": "Blog | News | Documentation | Review | SaaS | Marketplace",
      "authority_estimate": 85,
      "sentiment": "positive | neutral | negative",
      "ai_reusability": "High | Medium | Low"
    }
  ],
  "domain_summary": [
    {
      "domain": "example.com",
      "count": 2,
      "authority": "High | Medium | Low"
    }
  ],
  "top_recommendation": {
    "domain": "example.com",
    "reasoning": "Why this is the top source"
  },
  "runner_ups": [
    {
      "domain": "alternative.com",
      "reasoning": "Why this is also valuable"
    }
  ]
}

## Final Rule
Return ONLY valid JSON. No markdown code blocks, no conversational text.`

func comprehensivePrompt(query string) string {
	return fmt.Sprintf(comprehensivePromptTemplate, query)
}
