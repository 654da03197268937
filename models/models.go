package models

// This file serves as the central export point for all database models.
//
// Database schema overview:
// 1. users - accounts, role and current credit balance
// 2. refresh_tokens, permanent_tokens, password_reset_tokens - hashed auth tokens
// 3. credit_transactions - append-only credit ledger
// 4. credit_packages, purchases - Stripe checkout purchases of credit bundles
// 5. resume_analyses, cover_letters - AI output per uploaded résumé
// 6. ai_usage_logs - one row per provider call, for cost tracking
// 7. interview_simulations, interview_questions - mock interviews
// 8. job_sites, found_jobs - job board configuration and search results
