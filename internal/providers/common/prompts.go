package common

import (
	"fmt"
	"strings"
)

// contextHints vary the emphasis of answers so repeated prompts do not
// collapse to the same wording.
var contextHints = []string{
	"Focus on enterprise solutions and scalability.",
	"Emphasize user experience and ease of use.",
	"Consider cost-effectiveness and budget-friendly options.",
	"Prioritize security and compliance features.",
	"Highlight community support and documentation quality.",
	"Focus on modern, cutting-edge technologies.",
	"Consider legacy system integration and migration.",
	"Emphasize performance and optimization.",
	"Highlight automation and efficiency capabilities.",
	"Focus on cloud-native and scalable solutions.",
}

var queryAspects = []string{
	"cost and pricing",
	"ease of use",
	"performance and speed",
	"reliability and stability",
	"features and capabilities",
	"user experience",
	"scaling and growth",
	"support and documentation",
	"security and privacy",
	"maintenance and updates",
	"team collaboration",
	"integration options",
	"backup and recovery",
	"compliance and regulations",
	"cost optimization",
	"migration and switching",
	"customization options",
	"troubleshooting and help",
	"performance comparison",
	"automation capabilities",
}

// competitorFramings drive the three parallel discovery calls.
var competitorFramings = []string{
	"well-known, established",
	"newer or emerging",
	"enterprise-focused or developer-focused",
}

// FallbackTopics are used when topic derivation fails.
var fallbackTopics = []TopicOutput{
	{Name: "Market Solutions", Description: "Analysis of solutions in the company's market segment"},
	{Name: "Product Alternatives", Description: "Comparison with alternative products and services"},
	{Name: "Implementation & Setup", Description: "Common setup and implementation questions"},
	{Name: "Pricing & Plans", Description: "Cost comparison and pricing structure inquiries"},
	{Name: "Integration & Compatibility", Description: "Integration with existing tools and platforms"},
}

const answerSystemPrompt = `You are a helpful AI assistant answering questions about various products and services.
Provide practical, unbiased recommendations focusing on the most popular and widely-used options.
Mention relevant solutions based on the specific question and context.
Be natural and conversational in your responses.`

func buildAnswerPrompt(question, hint string) string {
	return fmt.Sprintf(`ADDITIONAL CONTEXT: %s

Always include specific, actionable URLs and sources in your response. For each recommendation provide any relevant URLs you know of: official documentation, GitHub repositories, Stack Overflow or forum discussions, tutorials and guides, blog posts, API documentation, videos, and industry reports.

Format the response so the URLs appear naturally in the text. Make sure all URLs are complete and valid, including https://.

Question: %s`, hint, question)
}

const classifySystemPrompt = `You analyze AI assistant responses for mentions of products, services and cited sources. Return only valid JSON.`

func buildClassifyPrompt(brandName, responseText string) string {
	brand := strings.TrimSpace(brandName)
	if brand == "" {
		brand = "the main brand or company"
	}
	return fmt.Sprintf(`Analyze the following AI response.

Tracked brand: %s

Response to analyze:
"""
%s
"""

Return a JSON object with:
- "brandMentioned": true if the tracked brand is mentioned
- "competitors": names of competing products, services or tools mentioned
- "sources": every complete URL (starting with http:// or https://) mentioned, without duplicates`, brand, responseText)
}

func buildQuerySystemPrompt(topicName, aspect string) string {
	return fmt.Sprintf(`You are generating authentic user search queries about %s with focus on %s.

Make each query sound like a real person with a genuine question or problem. Rotate starters such as "Dealing with...", "Struggling with...", "Need help with...", "How to fix...", "Looking for...", "Best way to...".
Mix in constraints ("for small business", "under $100/month", "for beginners") and context ("startup", "enterprise", "personal use").

Generate ONE authentic user question or problem (max 12 words). Return only the plain text without any quotes or formatting.`, topicName, aspect)
}

func buildQueryUserPrompt(topicName, topicDescription, aspect string, competitors []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s, Focus: %s.", topicName, aspect)
	if d := strings.TrimSpace(topicDescription); d != "" {
		fmt.Fprintf(&b, "\nTopic description: %s", d)
	}
	if len(competitors) > 0 {
		fmt.Fprintf(&b, "\nDo not name any specific product or brand, including: %s", strings.Join(competitors, ", "))
	}
	return b.String()
}

const competitorSystemPrompt = `You are an expert at identifying direct competitors for technology companies.`

func buildCompetitorPrompt(framing, homepageText string) string {
	return fmt.Sprintf(`Homepage content:
"""
%s
"""

Find 2-3 %s direct competitors for this company. Return a JSON object: {"competitors": [{"name": "Competitor Name", "url": "https://competitor.com", "category": "Category"}]}`, homepageText, framing)
}

const categorizeSystemPrompt = `You are an expert at categorizing companies and competitors.
Given a competitor name and the context of the main brand, determine the most appropriate category.
Return only the category name as a single word or short phrase (e.g., "E-commerce", "Social Media", "Finance", "Healthcare", "Education", "Entertainment", "Technology", "Retail", "Food & Beverage", "Transportation").
Do not include explanations or additional text.`

func buildCategorizePrompt(brandName, competitor string) string {
	if strings.TrimSpace(brandName) == "" {
		brandName = "Unknown"
	}
	return fmt.Sprintf("Brand: %s\nCompetitor: %s\n\nWhat category does this competitor belong to?", brandName, competitor)
}

const summarySystemPrompt = `You are an expert at analyzing company websites and extracting structured information. Return only valid JSON.`

func buildSummaryPrompt(pageText string) string {
	return fmt.Sprintf(`Analyze this company website content and extract key information.

Website content:
"""
%s
"""

Return a JSON object with "title" (company name or main heading), "description" (one sentence describing what this company does), "features" (3-5 main features or capabilities) and "services" (3-5 main services or products).
Be specific and use the actual services and features mentioned on the website.`, pageText)
}

const topicsSystemPrompt = `You are an expert at understanding industries and generating relevant search topics. Return only valid JSON.`

func buildTopicsPrompt(title, description string, features, services []string) string {
	return fmt.Sprintf(`Based on this company information, generate 5-7 specific, relevant topic areas for answer engine visibility analysis.

Company: %s
Description: %s
Features: %s
Services: %s

Generate topics that are specific to this company's industry and services, reflect real user questions and pain points, cover different customer segments (enterprise, SMB, individual), and include both product-specific and use-case-specific areas.

Examples of good topics:
- For a CRM company: "Small Business CRM Solutions", "Sales Pipeline Management"
- For a payment processor: "Online Payment Processing", "Subscription Billing"

Return a JSON object: {"topics": [{"name": "Specific Topic Name", "description": "Brief description of what users search for in this topic"}]}`,
		title, description, strings.Join(features, ", "), strings.Join(services, ", "))
}
