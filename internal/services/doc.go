// Package services holds cross-cutting helpers shared by Carousel
// components: the sentinel error taxonomy with HTTP status mapping, and
// context annotations for correlating log records with sessions and
// requests.
package services
